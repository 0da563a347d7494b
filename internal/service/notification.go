package service

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"debatebet/internal/logger"
	"debatebet/internal/units"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/telebot.v3"
)

// Sender is the subset of *telebot.Bot used for broadcasts
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// NotificationService broadcasts committed debate events to a Telegram channel
type NotificationService struct {
	sender    Sender
	engine    *Engine
	mu        sync.Mutex
	channelID string
}

// NewTelegramSender creates a bot used only for sending messages
func NewTelegramSender(token string) (*telebot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token not set")
	}
	b, err := telebot.NewBot(telebot.Settings{
		Token: token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return b, nil
}

// NewNotificationService creates a broadcaster. engine is used to enrich
// messages with debate details and may be nil.
func NewNotificationService(sender Sender, channelID string, engine *Engine) *NotificationService {
	return &NotificationService{
		sender:    sender,
		engine:    engine,
		channelID: channelID,
	}
}

// Emit publishes the event to the channel when it is one worth announcing
func (s *NotificationService) Emit(evt Event) {
	if s.channelID == "" || s.sender == nil {
		return
	}

	message, ok := s.formatEvent(evt)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.sender.Send(s.getChannelRecipient(), message, &telebot.SendOptions{
		ParseMode: telebot.ModeMarkdownV2,
	})
	if err != nil {
		logger.Debug(logger.System, "broadcast_error", fmt.Sprintf("channel=%s kind=%s error=%v", s.channelID, evt.Kind, err))
		log.Printf("Failed to publish %s for debate #%d to channel %s: %v", evt.Kind, evt.DebateID, s.channelID, err)
		return
	}
	logger.Debug(logger.System, "broadcast_sent", fmt.Sprintf("channel=%s kind=%s debate_id=%d", s.channelID, evt.Kind, evt.DebateID))
}

func (s *NotificationService) formatEvent(evt Event) (string, bool) {
	switch evt.Kind {
	case EventDebateCreated:
		return s.formatDebateCreated(evt), true
	case EventDebateResolved:
		return s.formatDebateResolved(evt), true
	case EventDebateMarkedRefundable:
		return fmt.Sprintf("↩️ *Debate Called Off*\n\n*\\#%d* is now refundable\\.\nAll stakes will be returned; use /refunds %d to follow progress\\.",
			evt.DebateID, evt.DebateID), true
	case EventUserRefunded:
		return fmt.Sprintf("💰 Refund sent: %s returned to %s on debate \\#%d",
			EscapeMarkdown(formatAmount(evt.Amount)),
			EscapeMarkdown(shortAddress(evt.User)),
			evt.DebateID), true
	}
	return "", false
}

func (s *NotificationService) formatDebateCreated(evt Event) string {
	if s.engine == nil {
		return fmt.Sprintf("🆕 *New Debate Created*\n\n*\\#%d*\n\n🎯 Place your bets\\!", evt.DebateID)
	}
	d, err := s.engine.GetDebate(context.Background(), evt.DebateID)
	if err != nil {
		logger.Debug(logger.System, "broadcast_lookup_failed", fmt.Sprintf("debate_id=%d error=%v", evt.DebateID, err))
		return fmt.Sprintf("🆕 *New Debate Created*\n\n*\\#%d*\n\n🎯 Place your bets\\!", evt.DebateID)
	}
	return fmt.Sprintf("🆕 *New Debate Created*\n\n*\\#%d* Agent %d vs Agent %d\n\n💸 Platform fee: %s\n⏰ Betting opens %s\n\n🎯 Place your bets\\!",
		d.ID, d.AgentA, d.AgentB,
		EscapeMarkdown(formatFee(d.FeeBps)),
		EscapeMarkdown(humanize.Time(time.Unix(d.PublicTs, 0))))
}

func (s *NotificationService) formatDebateResolved(evt Event) string {
	pool := ""
	if s.engine != nil {
		totals, err := s.engine.PoolTotals(context.Background(), evt.DebateID)
		if err == nil {
			sum := new(big.Int)
			for _, v := range totals {
				sum.Add(sum, v)
			}
			pool = fmt.Sprintf("\n💰 Total Pool: %s", EscapeMarkdown(formatAmount(sum)))
		}
	}
	return fmt.Sprintf("🏁 *Debate Resolved*\n\n*\\#%d* winner: *Agent %d*%s\n\nWinners can now claim their payouts\\.",
		evt.DebateID, evt.AgentID, pool)
}

// formatAmount renders wei as whole units
func formatAmount(v *big.Int) string {
	return units.Format(v) + " ETH"
}

// formatFee renders basis points as a percentage
func formatFee(bps uint32) string {
	return humanize.FtoaWithDigits(float64(bps)/100, 2) + "%"
}

func shortAddress(addr common.Address) string {
	return truncateAddress(addr.Hex())
}

// truncateAddress keeps the first 6 and last 4 characters of a hex address
func truncateAddress(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

// getChannelRecipient returns the appropriate recipient for the configured channel
func (s *NotificationService) getChannelRecipient() telebot.Recipient {
	if strings.HasPrefix(s.channelID, "@") {
		return &telebot.Chat{Username: s.channelID}
	}
	return &telebot.Chat{ID: parseChannelID(s.channelID)}
}

// parseChannelID parses a channel ID string (supports numeric IDs)
func parseChannelID(channelID string) int64 {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// EscapeMarkdown escapes special characters for Telegram MarkdownV2 mode
func EscapeMarkdown(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	for _, ch := range []string{"*", "_", "`", "[", "]", "(", ")", "~", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"} {
		escaped = strings.ReplaceAll(escaped, ch, `\`+ch)
	}
	return escaped
}
