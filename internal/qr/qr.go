package qr

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

const dataURIPrefix = "data:image/png;base64,"

// Encode renders a raw pairing payload as a PNG data URI the dashboard can
// drop straight into an <img> tag.
func Encode(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}
