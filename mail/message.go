package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const base64LineLen = 76

// NewMessageID returns a globally unique Message-ID for the sender's domain.
func NewMessageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		domain = from[i+1:]
	}

	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// Compose renders the RFC 5322 message: headers, a text/html alternative
// and, when present, attachments inside multipart/mixed.
func Compose(from Address, email Email, messageID string, date time.Time) ([]byte, error) {
	bodyHeader, body, err := alternative(email.Body, email.HTML)
	if err != nil {
		return nil, err
	}

	if len(email.Attachments) > 0 {
		bodyHeader, body, err = mixed(bodyHeader, body, email.Attachments)
		if err != nil {
			return nil, err
		}
	}

	var msg bytes.Buffer

	writeHeader(&msg, "From", formatAddress(from))
	writeHeader(&msg, "To", formatAddressList(email.To))
	writeHeader(&msg, "Subject", mime.QEncoding.Encode("utf-8", email.Subject))
	writeHeader(&msg, "Date", date.Format(time.RFC1123Z))
	writeHeader(&msg, "Message-ID", messageID)
	writeHeader(&msg, "MIME-Version", "1.0")

	keys := make([]string, 0, len(email.Headers))
	for k := range email.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(&msg, textproto.CanonicalMIMEHeaderKey(k), email.Headers[k])
	}

	writeHeader(&msg, "Content-Type", bodyHeader.Get("Content-Type"))
	if cte := bodyHeader.Get("Content-Transfer-Encoding"); cte != "" {
		writeHeader(&msg, "Content-Transfer-Encoding", cte)
	}
	msg.WriteString("\r\n")
	msg.Write(body)

	return msg.Bytes(), nil
}

func alternative(text, html string) (textproto.MIMEHeader, []byte, error) {
	if html == "" {
		return textPart("text/plain", text)
	}
	if text == "" {
		return textPart("text/html", html)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, p := range []struct{ contentType, body string }{
		{"text/plain", text},
		{"text/html", html},
	} {
		header, body, err := textPart(p.contentType, p.body)
		if err != nil {
			return nil, nil, err
		}
		w, err := mw.CreatePart(header)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create body part")
		}
		if _, err := w.Write(body); err != nil {
			return nil, nil, errors.Wrap(err, "failed to write body part")
		}
	}

	if err := mw.Close(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to close multipart/alternative")
	}

	return multipartHeader("multipart/alternative", mw.Boundary()), buf.Bytes(), nil
}

func mixed(bodyHeader textproto.MIMEHeader, body []byte, attachments []Attachment) (textproto.MIMEHeader, []byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	w, err := mw.CreatePart(bodyHeader)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create body part")
	}
	if _, err := w.Write(body); err != nil {
		return nil, nil, errors.Wrap(err, "failed to write body part")
	}

	for _, a := range attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		header := textproto.MIMEHeader{}
		header.Set("Content-Type", mime.FormatMediaType(contentType, map[string]string{"name": a.Filename}))
		header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
		header.Set("Content-Transfer-Encoding", "base64")

		w, err := mw.CreatePart(header)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to create attachment %s", a.Filename)
		}
		if _, err := w.Write(encodeBase64(a.Content)); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to write attachment %s", a.Filename)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to close multipart/mixed")
	}

	return multipartHeader("multipart/mixed", mw.Boundary()), buf.Bytes(), nil
}

func textPart(contentType, body string) (textproto.MIMEHeader, []byte, error) {
	var buf bytes.Buffer
	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(body)); err != nil {
		return nil, nil, errors.Wrap(err, "failed to encode body")
	}
	if err := qp.Close(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to encode body")
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", contentType+"; charset=UTF-8")
	header.Set("Content-Transfer-Encoding", "quoted-printable")

	return header, buf.Bytes(), nil
}

func multipartHeader(mediaType, boundary string) textproto.MIMEHeader {
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", mime.FormatMediaType(mediaType, map[string]string{"boundary": boundary}))

	return header
}

func encodeBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)

	var buf bytes.Buffer
	for len(encoded) > base64LineLen {
		buf.WriteString(encoded[:base64LineLen])
		buf.WriteString("\r\n")
		encoded = encoded[base64LineLen:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")

	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	// header injection guard
	value = strings.NewReplacer("\r", "", "\n", "").Replace(value)
	fmt.Fprintf(buf, "%s: %s\r\n", key, value)
}

// formatAddress formats a single address, encoding non-ASCII display names.
func formatAddress(addr Address) string {
	if addr.Name == "" {
		return addr.Address
	}

	return (&netmail.Address{Name: addr.Name, Address: addr.Address}).String()
}

// formatAddressList formats a list of addresses.
func formatAddressList(addrs []Address) string {
	formatted := make([]string, len(addrs))
	for i, addr := range addrs {
		formatted[i] = formatAddress(addr)
	}

	return strings.Join(formatted, ", ")
}
