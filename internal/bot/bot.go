package bot

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"debatebet/internal/logger"
	"debatebet/internal/service"
	"debatebet/internal/storage"
	"debatebet/internal/units"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/telebot.v3"
)

const sendOptsMode = telebot.ModeMarkdownV2

// maxListed caps the number of debates shown by /debates
const maxListed = 10

// formatAmount formats wei as ETH
func formatAmount(v *big.Int) string {
	return service.EscapeMarkdown(units.Format(v) + " ETH")
}

// Bot answers read-only queries about debates
type Bot struct {
	bot    *telebot.Bot
	engine *service.Engine
	webURL string
}

// New creates a long-polling bot. webURL, when set, is offered as a web app
// button on /start.
func New(token string, engine *service.Engine, webURL string) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token not set")
	}
	b, err := telebot.NewBot(telebot.Settings{
		Token: token,
		Poller: &telebot.LongPoller{
			Timeout: 10 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bt := &Bot{bot: b, engine: engine, webURL: webURL}
	bt.register()
	return bt, nil
}

// Start polls for updates until Stop is called
func (b *Bot) Start() {
	logger.Debug(logger.System, "bot_started", fmt.Sprintf("username=%s", b.bot.Me.Username))
	b.bot.Start()
}

// Stop stops polling
func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) register() {
	b.bot.Handle("/start", func(c telebot.Context) error {
		logger.Debug(strconv.FormatInt(c.Sender().ID, 10), "command_start", fmt.Sprintf("username=%s", c.Sender().Username))

		text := "Welcome to the debate wagering desk\\!\n\n" +
			"Back one of two agents in a debate and share the pool if it wins\\. " +
			"Use /help to see what I can tell you\\."
		if b.webURL == "" {
			return c.Send(text, sendOptsMode)
		}
		btn := telebot.InlineButton{
			Text:   "Open debates",
			WebApp: &telebot.WebApp{URL: b.webURL},
		}
		return c.Send(text, sendOptsMode, &telebot.ReplyMarkup{
			InlineKeyboard: [][]telebot.InlineButton{{btn}},
		})
	})

	b.bot.Handle("/help", func(c telebot.Context) error {
		logger.Debug(strconv.FormatInt(c.Sender().ID, 10), "command_help", "")
		return c.Send(helpText(), sendOptsMode)
	})

	b.bot.Handle("/debates", func(c telebot.Context) error {
		return b.reply(c, "debates", func(ctx context.Context) (string, error) {
			return debatesText(ctx, b.engine)
		})
	})

	b.bot.Handle("/debate", func(c telebot.Context) error {
		id, ok := debateArg(c)
		if !ok {
			return c.Send(service.EscapeMarkdown("Usage: /debate <id>"), sendOptsMode)
		}
		return b.reply(c, "debate", func(ctx context.Context) (string, error) {
			return debateText(ctx, b.engine, id)
		})
	})

	b.bot.Handle("/refunds", func(c telebot.Context) error {
		id, ok := debateArg(c)
		if !ok {
			return c.Send(service.EscapeMarkdown("Usage: /refunds <id>"), sendOptsMode)
		}
		return b.reply(c, "refunds", func(ctx context.Context) (string, error) {
			return refundsText(ctx, b.engine, id)
		})
	})

	b.bot.Handle("/balance", func(c telebot.Context) error {
		args := c.Args()
		if len(args) < 1 || !common.IsHexAddress(args[0]) {
			return c.Send(service.EscapeMarkdown("Usage: /balance <address>"), sendOptsMode)
		}
		addr := common.HexToAddress(args[0])
		return b.reply(c, "balance", func(ctx context.Context) (string, error) {
			return balanceText(ctx, b.engine, addr)
		})
	})
}

// reply runs a read-only query and sends its text, or a short error
func (b *Bot) reply(c telebot.Context, command string, query func(ctx context.Context) (string, error)) error {
	actor := strconv.FormatInt(c.Sender().ID, 10)
	logger.Debug(actor, "command_"+command, strings.Join(c.Args(), " "))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text, err := query(ctx)
	if err != nil {
		logger.Debug(actor, "error", fmt.Sprintf("command=%s error=%s", command, err.Error()))
		if errors.Is(err, service.ErrNotFound) {
			return c.Send(service.EscapeMarkdown(err.Error()), sendOptsMode)
		}
		return c.Send(service.EscapeMarkdown("Error retrieving data. Please try again."), sendOptsMode)
	}
	return c.Send(text, sendOptsMode)
}

func debateArg(c telebot.Context) (uint64, bool) {
	args := c.Args()
	if len(args) < 1 {
		return 0, false
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func helpText() string {
	return "*Available Commands*\n\n" +
		service.EscapeMarkdown("/debates - Open debates\n"+
			"/debate <id> - Pools and state of a debate\n"+
			"/refunds <id> - Refund progress of a debate\n"+
			"/balance <address> - Wallet balance\n"+
			"/help - Show this help message")
}

func debatesText(ctx context.Context, engine *service.Engine) (string, error) {
	debates, err := engine.ListDebates(ctx, storage.DebateStateCreated)
	if err != nil {
		return "", err
	}
	if len(debates) == 0 {
		return "*Open Debates*\n\nNo open debates at the moment\\.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Open Debates* \\(%d\\)\n\n", len(debates))
	for i, d := range debates {
		if i == maxListed {
			fmt.Fprintf(&sb, "\\.\\.\\.and %d more", len(debates)-maxListed)
			break
		}
		totals, err := engine.PoolTotals(ctx, d.ID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "*\\#%d* agent %d vs agent %d\n   Pool: %s \\| %s\n   Betting opens %s\n\n",
			d.ID, d.AgentA, d.AgentB,
			formatAmount(totals[d.AgentA]), formatAmount(totals[d.AgentB]),
			service.EscapeMarkdown(humanize.Time(time.Unix(d.PublicTs, 0))))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func debateText(ctx context.Context, engine *service.Engine, id uint64) (string, error) {
	d, err := engine.GetDebate(ctx, id)
	if err != nil {
		return "", err
	}
	totals, err := engine.PoolTotals(ctx, id)
	if err != nil {
		return "", err
	}
	bettors, err := engine.Bettors(ctx, id)
	if err != nil {
		return "", err
	}

	var status string
	switch d.State {
	case storage.DebateStateResolved:
		status = fmt.Sprintf("Resolved, agent %d won", d.WinningAgentID)
	case storage.DebateStateRefundable:
		status = "Refundable"
	default:
		status = "Open"
	}

	total := new(big.Int).Add(totals[d.AgentA], totals[d.AgentB])
	return fmt.Sprintf("*Debate \\#%d*\n\n"+
		"Status: %s\n"+
		"Agent %d: %s\n"+
		"Agent %d: %s\n"+
		"Total pool: %s\n"+
		"Bettors: %s\n"+
		"Fee: %s",
		d.ID,
		service.EscapeMarkdown(status),
		d.AgentA, formatAmount(totals[d.AgentA]),
		d.AgentB, formatAmount(totals[d.AgentB]),
		formatAmount(total),
		humanize.Comma(int64(len(bettors))),
		service.EscapeMarkdown(humanize.FtoaWithDigits(float64(d.FeeBps)/100, 2)+"%")), nil
}

func refundsText(ctx context.Context, engine *service.Engine, id uint64) (string, error) {
	d, err := engine.GetDebate(ctx, id)
	if err != nil {
		return "", err
	}
	if d.State != storage.DebateStateRefundable {
		return fmt.Sprintf("*Debate \\#%d* is not refundable\\.", id), nil
	}

	infos, err := engine.GetUsersRefundInfo(ctx, id)
	if err != nil {
		return "", err
	}

	done := 0
	outstanding := new(big.Int)
	for _, info := range infos {
		if info.Refunded {
			done++
			continue
		}
		owed, err := engine.GetUserRefundableAmount(ctx, id, info.User)
		if err != nil {
			return "", err
		}
		outstanding.Add(outstanding, owed)
	}

	return fmt.Sprintf("*Refunds for debate \\#%d*\n\n"+
		"Refunded bettors: %d of %d\n"+
		"Outstanding: %s",
		id, done, len(infos), formatAmount(outstanding)), nil
}

func balanceText(ctx context.Context, engine *service.Engine, addr common.Address) (string, error) {
	balance, err := engine.WalletBalance(ctx, addr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("*Balance*\n\n`%s`\n%s", addr.Hex(), formatAmount(balance)), nil
}
