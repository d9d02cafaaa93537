package gmail

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/vipul43/kiwis-outreach/internal/service"
)

const mimeLineLength = 76

// buildRawMessage renders msg as an RFC 5322 message with a base64 HTML
// body. From is left out; Gmail fills in the authenticated mailbox.
func buildRawMessage(msg service.OutgoingMessage, now time.Time) ([]byte, error) {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("To: %s\r\n", to.String()))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", encodeHeader(msg.Subject)))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", now.Format(time.RFC1123Z)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(msg.HTML))
	for len(encoded) > mimeLineLength {
		b.WriteString(encoded[:mimeLineLength])
		b.WriteString("\r\n")
		encoded = encoded[mimeLineLength:]
	}
	if encoded != "" {
		b.WriteString(encoded)
		b.WriteString("\r\n")
	}

	return []byte(b.String()), nil
}

// encodeHeader RFC 2047-encodes non-ASCII header values and strips line breaks
func encodeHeader(value string) string {
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	for _, r := range value {
		if r > 127 {
			return mime.QEncoding.Encode("utf-8", value)
		}
	}
	return value
}
