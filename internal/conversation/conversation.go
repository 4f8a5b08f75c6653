package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/guard-registry/constants"
	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
	"github.com/joseph-ayodele/guard-registry/internal/repository"
)

// Turn is one inbound text message.
type Turn struct {
	Sender string
	Text   string // normalized: NFC, trimmed, lowercase
}

func NewTurn(sender, text string) Turn {
	return Turn{Sender: sender, Text: Normalize(text)}
}

// Normalize composes accents (a decomposed "si\u0301" becomes "sí"), trims and lowercases.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(text)))
}

// Classify maps a normalized reply onto an intent. Rules are checked in order.
func Classify(text string) constants.Intent {
	switch {
	case text == "sí" || text == "si":
		return constants.IntentConfirm
	case text == "no":
		return constants.IntentReject
	case strings.Contains(text, constants.ListCommandToken):
		return constants.IntentList
	default:
		return constants.IntentUnknown
	}
}

// Outcome is what the caller must do after a turn.
type Outcome struct {
	Intent constants.Intent
	Reply  string
	// Persist is the record to append, set only on a confirm with a pending record.
	Persist *identity.Record
	// ClearPending asks the caller to drop the sender's pending record.
	ClearPending bool
}

// Lister reads confirmed records for the list command.
type Lister interface {
	List(ctx context.Context) ([]repository.StoredRecord, error)
}

// Engine decides replies. It keeps no per-sender state; pending records are passed in.
type Engine struct {
	lister Lister
	logger *slog.Logger
}

func NewEngine(lister Lister, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{lister: lister, logger: logger}
}

// Respond handles one turn. pending is the sender's record awaiting confirmation, or nil.
// Only the list intent can fail, and only when the store cannot be read.
func (e *Engine) Respond(ctx context.Context, turn Turn, pending *identity.Record) (Outcome, error) {
	intent := Classify(turn.Text)
	logger := common.LoggerFrom(ctx, e.logger)
	logger.Debug("conversation turn", "intent", intent, "has_pending", pending != nil)

	switch intent {
	case constants.IntentConfirm:
		if pending == nil {
			return Outcome{Intent: intent, Reply: constants.ReplyNothingToConfirm}, nil
		}
		rec := *pending
		return Outcome{Intent: intent, Reply: constants.ReplyConfirmed, Persist: &rec, ClearPending: true}, nil

	case constants.IntentReject:
		return Outcome{Intent: intent, Reply: constants.ReplyCorrection, ClearPending: true}, nil

	case constants.IntentList:
		recs, err := e.lister.List(ctx)
		if err != nil {
			logger.Error("list records failed", "error", err)
			return Outcome{Intent: intent}, err
		}
		return Outcome{Intent: intent, Reply: FormatList(recs)}, nil

	default:
		return Outcome{Intent: constants.IntentUnknown, Reply: constants.ReplyUnknownCommand}, nil
	}
}

// ConfirmationPrompt renders a parsed record and asks for a yes/no answer.
func ConfirmationPrompt(rec identity.Record) string {
	return fmt.Sprintf("Nombre: %s\nApellidos: %s\nRUT: %s\n\n%s",
		rec.Name.Or(constants.MissingValue),
		rec.Surname.Or(constants.MissingValue),
		rec.NationalID.Or(constants.MissingValue),
		constants.ConfirmQuestion,
	)
}

// FormatList enumerates stored records, one per line, in store order.
func FormatList(recs []repository.StoredRecord) string {
	if len(recs) == 0 {
		return constants.ReplyListEmpty
	}
	var b strings.Builder
	b.WriteString(constants.ReplyListHeader)
	for i, r := range recs {
		fmt.Fprintf(&b, "\n%d. %s %s - RUT: %s",
			i+1,
			r.Name.Or(constants.MissingValue),
			r.Surname.Or(constants.MissingValue),
			r.NationalID.Or(constants.MissingValue),
		)
	}
	return b.String()
}
