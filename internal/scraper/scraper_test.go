package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ospreyintel/awardflow/models"
)

func TestNoticeURL(t *testing.T) {
	s := New()
	u, err := s.noticeURL(models.Opportunity{NoticeID: "abc123"})
	assert.NoError(t, err)
	assert.Equal(t, "https://sam.gov/opp/abc123/view", u)

	_, err = s.noticeURL(models.Opportunity{})
	assert.Error(t, err, "notice id is required")
}

func TestFirstAttachmentLink(t *testing.T) {
	html := `<html><body>
		<a href="/about">About</a>
		<a href="/files/solicitation.pdf?download=true">Solicitation</a>
		<a href="/files/qna.docx">Q&amp;A</a>
	</body></html>`

	link := firstAttachmentLink(html, "https://sam.gov/opp/abc123/view")
	assert.Equal(t, "https://sam.gov/files/solicitation.pdf?download=true", link)
}

func TestFirstAttachmentLinkNoneFound(t *testing.T) {
	html := `<html><body><a href="/about">About</a></body></html>`
	assert.Empty(t, firstAttachmentLink(html, "https://sam.gov/opp/x/view"))
}
