package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	lru "github.com/hashicorp/golang-lru/v2"

	appLog "assistant/internal/log"
	"assistant/internal/model"
)

const (
	defaultCacheSize = 512
	// maxBodyBytes bounds how much of a body is read per message.
	maxBodyBytes = 1 << 20
)

// Config configures a Store.
type Config struct {
	// Maildir is the inbox Maildir that is read.
	Maildir string
	// Outbox is the Maildir outgoing messages are delivered into.
	Outbox string
	// Address is the sender address of outgoing mail.
	Address string
	// CacheSize bounds the parsed-message cache.
	CacheSize int
}

type cached struct {
	msg    model.Message
	unread bool
}

// Store reads and writes mail in Maildir folders.
type Store struct {
	cfg   Config
	cache *lru.Cache[string, cached]
	now   func() time.Time
}

// New creates a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Maildir == "" {
		return nil, errors.New("maildir path is empty")
	}
	if cfg.Outbox == "" {
		return nil, errors.New("outbox path is empty")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, cached](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{cfg: cfg, cache: cache, now: time.Now}, nil
}

// ListMessages returns the ids of up to maxResults messages matching query,
// newest first. Query terms: from:x, subject:x, is:unread, and bare words
// matched against sender and subject. in:... terms are accepted and ignored.
func (s *Store) ListMessages(ctx context.Context, query string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		return []string{}, nil
	}
	q := parseQuery(query)

	files, err := scanMaildir(s.cfg.Maildir)
	if err != nil {
		return nil, fmt.Errorf("scan maildir: %w", err)
	}

	type hit struct {
		id   string
		date time.Time
	}
	var hits []hit
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := s.load(f)
		if err != nil {
			appLog.Warn("skipping unreadable message", "id", f.id, "err", err)
			continue
		}
		if q.matches(c) {
			hits = append(hits, hit{id: f.id, date: c.msg.Date})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if !hits[i].date.Equal(hits[j].date) {
			return hits[i].date.After(hits[j].date)
		}
		return hits[i].id < hits[j].id
	})
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	appLog.Debug("maildir listed", "query", query, "scanned", len(files), "matched", len(ids))
	return ids, nil
}

// GetMessage returns one message by id.
func (s *Store) GetMessage(ctx context.Context, id string) (model.Message, error) {
	if err := ctx.Err(); err != nil {
		return model.Message{}, err
	}
	if c, ok := s.cache.Get(id); ok {
		return c.msg, nil
	}
	files, err := scanMaildir(s.cfg.Maildir)
	if err != nil {
		return model.Message{}, err
	}
	for _, f := range files {
		if f.id == id {
			c, err := s.load(f)
			if err != nil {
				return model.Message{}, err
			}
			return c.msg, nil
		}
	}
	return model.Message{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) load(f maildirFile) (cached, error) {
	if c, ok := s.cache.Get(f.id); ok {
		c.unread = f.unread
		return c, nil
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return cached{}, err
	}
	msg, err := parseMessage(f.id, raw)
	if err != nil {
		return cached{}, err
	}
	c := cached{msg: msg, unread: f.unread}
	s.cache.Add(f.id, c)
	return c, nil
}

var (
	tagPattern   = regexp.MustCompile(`(?s)<[^>]*>`)
	spacePattern = regexp.MustCompile(`[ \t]+`)
)

// parseMessage reads headers and the first text body of an RFC 5322 message,
// preferring text/plain over text/html.
func parseMessage(id string, raw []byte) (model.Message, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return model.Message{}, err
	}
	defer mr.Close()

	msg := model.Message{ID: id}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = formatAddress(from[0])
	} else {
		msg.From = mr.Header.Get("From")
	}
	if to, err := mr.Header.AddressList("To"); err == nil {
		for _, a := range to {
			msg.To = append(msg.To, a.Address)
		}
	}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep the headers of messages with broken bodies.
			appLog.Warn("message body unreadable", "id", id, "err", err)
			break
		}
		h, ok := p.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, _ := io.ReadAll(io.LimitReader(p.Body, maxBodyBytes))
		switch {
		case ct == "text/plain" && plain == "":
			plain = string(body)
		case ct == "text/html" && html == "":
			html = string(body)
		}
	}

	switch {
	case plain != "":
		msg.Content = strings.TrimSpace(plain)
	case html != "":
		msg.Content = strings.TrimSpace(spacePattern.ReplaceAllString(tagPattern.ReplaceAllString(html, " "), " "))
	}
	return msg, nil
}

func formatAddress(a *gomail.Address) string {
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}

type query struct {
	from, subject, words []string
	unread               bool
}

func parseQuery(raw string) query {
	var q query
	for _, tok := range strings.Fields(strings.ToLower(raw)) {
		key, val, ok := strings.Cut(tok, ":")
		if !ok || val == "" {
			q.words = append(q.words, tok)
			continue
		}
		switch key {
		case "from":
			q.from = append(q.from, val)
		case "subject":
			q.subject = append(q.subject, val)
		case "is":
			if val == "unread" {
				q.unread = true
			}
		case "in", "label":
		default:
			q.words = append(q.words, tok)
		}
	}
	return q
}

func (q query) matches(c cached) bool {
	from := strings.ToLower(c.msg.From)
	subject := strings.ToLower(c.msg.Subject)
	if q.unread && !c.unread {
		return false
	}
	for _, f := range q.from {
		if !strings.Contains(from, f) {
			return false
		}
	}
	for _, s := range q.subject {
		if !strings.Contains(subject, s) {
			return false
		}
	}
	for _, w := range q.words {
		if !strings.Contains(from, w) && !strings.Contains(subject, w) {
			return false
		}
	}
	return true
}
