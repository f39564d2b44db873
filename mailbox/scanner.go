package mailbox

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/civicworks/remedy/config"
	"github.com/civicworks/remedy/logger"
	"github.com/civicworks/remedy/pkg/metrics"
)

// IMAPScanner retrieves unread replies from the agent's inbox. Each Scan
// opens a fresh connection; scans are infrequent enough that keeping a
// session alive is not worth re-synchronizing mailbox state.
type IMAPScanner struct {
	host        string
	username    string
	password    string
	mailboxName string
	noTLS       bool
	bodyLimit   int
}

// NewIMAPScanner creates a scanner from the mail configuration. bodyLimit
// caps how many bytes of each reply body are kept.
func NewIMAPScanner(cfg config.MailConfig, bodyLimit int) *IMAPScanner {
	mailboxName := cfg.IMAPMailbox
	if mailboxName == "" {
		mailboxName = "INBOX"
	}
	return &IMAPScanner{
		host:        cfg.IMAPHost,
		username:    cfg.Username,
		password:    cfg.Password,
		mailboxName: mailboxName,
		noTLS:       cfg.IMAPNoTLS,
		bodyLimit:   bodyLimit,
	}
}

// Scan returns up to limit unread messages, newest first. No unread mail
// yields an empty result without error. Messages beyond the limit stay
// unread and are simply not examined this cycle; a message that fails to
// fetch or parse is skipped without aborting the rest of the batch.
//
// Bodies are fetched without PEEK, so the server flags examined messages
// as seen. That is the only read-tracking the agent does: a reply whose
// complaint could not be resolved this cycle is not re-flagged.
func (s *IMAPScanner) Scan(ctx context.Context, limit int) ([]Message, error) {
	var c *imapclient.Client
	var err error
	if s.noTLS {
		c, err = imapclient.DialInsecure(s.host, nil)
	} else {
		c, err = imapclient.DialTLS(s.host, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", s.host, err)
	}
	defer c.Close()

	if err := c.Login(s.username, s.password).Wait(); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	defer func() {
		if err := c.Logout().Wait(); err != nil {
			logger.Debug("logout failed", "error", err)
		}
	}()

	if _, err := c.Select(s.mailboxName, nil).Wait(); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", s.mailboxName, err)
	}

	searchData, err := c.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("unseen search failed: %w", err)
	}

	uids := latestUIDs(searchData.AllUIDs(), limit)
	if len(uids) == 0 {
		return nil, nil
	}

	messages := make([]Message, 0, len(uids))
	for i := len(uids) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			logger.Warn("scan aborted", "fetched", len(messages), "error", ctx.Err())
			break
		}

		msg, err := s.fetchOne(c, uids[i])
		if err != nil {
			logger.Warn("skipping unreadable message", "uid", uids[i], "error", err)
			continue
		}
		messages = append(messages, msg)
		metrics.RepliesScanned.Inc()
	}

	return messages, nil
}

// latestUIDs keeps the limit highest UIDs. Older unread mail is left for
// later cycles to bound per-scan cost.
func latestUIDs(uids []imap.UID, limit int) []imap.UID {
	if limit > 0 && len(uids) > limit {
		return uids[len(uids)-limit:]
	}
	return uids
}

func (s *IMAPScanner) fetchOne(c *imapclient.Client, uid imap.UID) (Message, error) {
	bodySection := &imap.FetchItemBodySection{}
	buffers, err := c.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}).Collect()
	if err != nil {
		return Message{}, fmt.Errorf("fetch failed: %w", err)
	}
	if len(buffers) == 0 {
		return Message{}, fmt.Errorf("fetch returned no data")
	}

	raw := buffers[0].FindBodySection(bodySection)
	if raw == nil {
		return Message{}, fmt.Errorf("fetch returned no body section")
	}

	return parseMessage(raw, s.bodyLimit)
}
