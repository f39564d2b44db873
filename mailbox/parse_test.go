package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseMessageSimple(t *testing.T) {
	raw := crlf(`From: citizen@example.com
To: agent@example.com
Subject: Re: Pothole Complaint #aaaaaaaaaaaaaaaaaaaaaaaa
Content-Type: text/plain; charset=utf-8

This is now fixed, thanks
`)

	msg, err := parseMessage(raw, 500)
	require.NoError(t, err)
	assert.Equal(t, "Re: Pothole Complaint #aaaaaaaaaaaaaaaaaaaaaaaa", msg.Subject)
	assert.Contains(t, msg.Body, "This is now fixed, thanks")
}

func TestParseMessageEncodedSubject(t *testing.T) {
	raw := crlf(`From: citizen@example.com
Subject: =?utf-8?Q?Re=3A_Pothole_Complaint_=23aaaaaaaaaaaaaaaaaaaaaaaa?=
Content-Type: text/plain; charset=utf-8

done
`)

	msg, err := parseMessage(raw, 500)
	require.NoError(t, err)
	assert.Equal(t, "Re: Pothole Complaint #aaaaaaaaaaaaaaaaaaaaaaaa", msg.Subject)
}

func TestParseMessageMultipart(t *testing.T) {
	raw := crlf(`From: citizen@example.com
Subject: Re: Pothole Complaint #aaaaaaaaaaaaaaaaaaaaaaaa
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XYZ"

--XYZ
Content-Type: text/html; charset=utf-8

<html><body><b>resolved</b> yesterday</body></html>
--XYZ
Content-Type: text/plain; charset=utf-8
Content-Disposition: attachment; filename="log.txt"

attached diagnostics, not the body
--XYZ
Content-Type: text/plain; charset=utf-8

The pothole was fixed on Monday.
--XYZ--
`)

	msg, err := parseMessage(raw, 500)
	require.NoError(t, err)
	// The attachment is skipped; the first inline text/plain part wins.
	assert.Equal(t, "The pothole was fixed on Monday.", strings.TrimRight(msg.Body, "\r\n"))
	assert.NotContains(t, msg.Body, "diagnostics")
	assert.NotContains(t, msg.Body, "<b>")
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := crlf(`From: citizen@example.com
Subject: update
Content-Type: text/html; charset=utf-8

<html><body><p>All <b>done</b> now.</p></body></html>
`)

	msg, err := parseMessage(raw, 500)
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "done")
	assert.NotContains(t, msg.Body, "<b>")
}

func TestParseMessageQuotedPrintable(t *testing.T) {
	raw := crlf(`From: citizen@example.com
Subject: update
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

r=C3=A9solu =E2=80=94 fixed
`)

	msg, err := parseMessage(raw, 500)
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "résolu — fixed")
}

func TestParseMessageTruncation(t *testing.T) {
	body := strings.Repeat("fixed ", 200) // ~1200 bytes
	raw := crlf("Subject: long\nContent-Type: text/plain; charset=utf-8\n\n" + body + "\n")

	msg, err := parseMessage(raw, 500)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(msg.Body), 500)
	assert.True(t, strings.HasPrefix(msg.Body, "fixed"))
}

func TestParseMessageUnknownCharset(t *testing.T) {
	raw := crlf(`Subject: update
Content-Type: text/plain; charset=x-no-such-charset

fixed, more or less
`)

	msg, err := parseMessage(raw, 500)
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "fixed")
}

func TestParseMessageNoTextPart(t *testing.T) {
	raw := crlf(`Subject: photo
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XYZ"

--XYZ
Content-Type: image/jpeg
Content-Disposition: attachment; filename="pothole.jpg"
Content-Transfer-Encoding: base64

/9j/4AAQSkZJRg==
--XYZ--
`)

	msg, err := parseMessage(raw, 500)
	require.NoError(t, err)
	assert.Equal(t, "photo", msg.Subject)
	assert.Empty(t, msg.Body)
}
