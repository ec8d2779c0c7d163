package provider

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

const maxDecompressedSize = 50 << 20

// decodeBody 按 Content-Encoding 解压响应体，失败时原样返回
// 设置了 Accept-Encoding 的代理或网关可能返回 br/zstd 压缩内容
func decodeBody(data []byte, contentEncoding string) []byte {
	if len(data) == 0 {
		return data
	}

	var reader io.Reader
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			log.Warnf("provider: failed to create gzip reader: %v", err)
			return data
		}
		defer gr.Close()
		reader = gr
	case "br":
		reader = brotli.NewReader(bytes.NewReader(data))
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			log.Warnf("provider: failed to create zstd reader: %v", err)
			return data
		}
		defer zr.Close()
		reader = zr
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(data))
		defer fr.Close()
		reader = fr
	case "", "identity":
		// 隐式 gzip
		if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
			return decodeBody(data, "gzip")
		}
		return data
	default:
		log.Warnf("provider: unsupported Content-Encoding %q, using raw body", contentEncoding)
		return data
	}

	decompressed, err := io.ReadAll(io.LimitReader(reader, maxDecompressedSize+1))
	if err != nil {
		log.Warnf("provider: failed to decompress %s body: %v", contentEncoding, err)
		return data
	}
	if len(decompressed) > maxDecompressedSize {
		log.Warnf("provider: decompressed body too large (%d bytes)", len(decompressed))
		return data
	}
	return decompressed
}
