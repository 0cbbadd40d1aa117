// Package validation checks uploaded videos and the names they are stored under.
package validation

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

var ErrNotVideo = errors.New("file is not a supported video")

var allowedVideoTypes = map[string]string{
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
	"video/x-msvideo":  ".avi",
	"video/x-flv":      ".flv",
}

const sniffSize = 512

// DetectVideo reads the leading bytes, rewinds the reader and returns the
// detected MIME type together with the extension to store the file under.
func DetectVideo(reader io.ReadSeeker) (mime, ext string, err error) {
	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(reader, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", "", err
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", "", err
	}
	if n == 0 {
		return "application/octet-stream", "", ErrNotVideo
	}

	buf = buf[:n]
	mime = sniffVideo(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}
	ext, ok := allowedVideoTypes[mime]
	if !ok {
		return mime, "", ErrNotVideo
	}
	return mime, ext, nil
}

func sniffVideo(buf []byte) string {
	// EBML header: Matroska or WebM, told apart by the DocType element.
	if bytes.HasPrefix(buf, []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		if bytes.Contains(buf, []byte("matroska")) {
			return "video/x-matroska"
		}
		return "video/webm"
	}
	if bytes.HasPrefix(buf, []byte("FLV\x01")) {
		return "video/x-flv"
	}
	if len(buf) >= 12 && string(buf[0:4]) == "RIFF" && string(buf[8:12]) == "AVI " {
		return "video/x-msvideo"
	}
	// ISO base media: [size]["ftyp"][brand]
	if len(buf) >= 12 && string(buf[4:8]) == "ftyp" {
		switch string(buf[8:12]) {
		case "qt  ":
			return "video/quicktime"
		case "M4A ", "M4B ", "M4P ", "heic", "heix", "avif", "mif1":
			return "application/octet-stream"
		default:
			return "video/mp4"
		}
	}
	return ""
}
