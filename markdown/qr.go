package markdown

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"image/png"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// qrModuleSize is the size in pixels of one QR module.
const qrModuleSize = 4

// qr renders the block text as an inline QR code image.
func (r *htmlRenderer) qr(code, caption string) error {
	content := strings.TrimRight(code, "\r\n")
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return authoringf("!qr", "encode qr code: %w", err)
	}
	img := q.Image(-qrModuleSize)
	var data bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&data, img); err != nil {
		return authoringf("!qr", "encode png: %w", err)
	}
	size := img.Bounds().Size()
	fmt.Fprintf(&r.buf, "<figure class='qr'><img src='data:image/png;base64,%s' alt='%s' width='%d' height='%d'>",
		base64.StdEncoding.EncodeToString(data.Bytes()), html.EscapeString(content), size.X, size.Y)
	if caption != "" {
		fmt.Fprintf(&r.buf, "<figcaption>%s</figcaption>", html.EscapeString(caption))
	}
	r.buf.WriteString("</figure>\n")
	return nil
}
