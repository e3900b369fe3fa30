package iclass

import (
	"bytes"
	"errors"
	"strings"

	"github.com/Pjt727/autosign/signin/services"
	"github.com/PuerkitoBio/goquery"
)

// TokenExtractor finds the one time execution token the SSO login form requires.
// Kept narrow so the scraping can be tested against saved pages.
type TokenExtractor interface {
	ExecutionToken(page []byte) (string, error)
}

type HTMLTokenExtractor struct{}

func (HTMLTokenExtractor) ExecutionToken(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", errors.Join(services.ErrLoginPageMalformed, err)
	}
	// ex format:
	// <input type="hidden" name="execution" value="e1s1..."/>
	token, ok := doc.Find("input[name='execution']").First().Attr("value")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", services.ErrTokenNotFound
	}
	return token, nil
}

// reports whether the page carries the error marker the SSO renders after a
// failed login and the messages inside it
func loginErrors(page []byte) (bool, []string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return false, nil, errors.Join(services.ErrLoginPageMalformed, err)
	}
	errorDivs := doc.Find("div.error_txt")
	var messages []string
	errorDivs.Each(func(_ int, s *goquery.Selection) {
		if msg := strings.TrimSpace(s.Text()); msg != "" {
			messages = append(messages, msg)
		}
	})
	return errorDivs.Length() > 0, messages, nil
}
