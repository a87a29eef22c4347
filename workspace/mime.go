package workspace

import (
	"bytes"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/teranos/opsgate/errors"
)

// now is swapped in tests
var now = time.Now

// composeMessage renders a UTF-8 plain-text RFC 822 message
func composeMessage(msg OutgoingMessage) ([]byte, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, errors.BadRequestf("invalid sender %q: %v", msg.From, err)
	}
	to, err := mail.ParseAddressList(msg.To)
	if err != nil {
		return nil, errors.BadRequestf("invalid recipient %q: %v", msg.To, err)
	}
	recipients := make([]string, len(to))
	for i, a := range to {
		recipients[i] = a.String()
	}

	var b bytes.Buffer
	writeHeader(&b, "From", from.String())
	writeHeader(&b, "To", strings.Join(recipients, ", "))
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&b, "Date", now().Format(time.RFC1123Z))
	writeHeader(&b, "MIME-Version", "1.0")
	writeHeader(&b, "Content-Type", `text/plain; charset="UTF-8"`)
	writeHeader(&b, "Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes(), nil
}

func writeHeader(b *bytes.Buffer, name, value string) {
	// Header injection: values never span lines
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}
