package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tghelpers "offersbot/core/telegram/helpers"
	"offersbot/core/telegram/keyboard"
	"offersbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// CancelCallbackKey identifies the inline cancel button under flow prompts.
const CancelCallbackKey = "flow_cancel"

// RegisterFlows binds every flow state to its text handler in the FSM
// registry. dispatch re-invokes a command handler for passthrough replies.
func RegisterFlows(f *Flows, dispatch func(cmd string, c tele.Context) error) {
	textHandler := func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		reply := f.Advance(ctx, c.Sender().ID, c.Chat().ID, c.Text())
		if reply.Passthrough != "" && dispatch != nil {
			return dispatch(reply.Passthrough, c)
		}
		return sendReply(c, reply)
	}

	for _, st := range []state.State{
		StateAddName, StateAddQuantity, StateAddPrice,
		StateQuantityID, StateQuantityValue,
		StatePriceID, StatePriceValue,
		StateSoldOutID, StateAnnounceID,
	} {
		state.RegisterHandler(st, textHandler)
	}
	state.RegisterHandler(StateUploadFile, func(c tele.Context) error {
		if doc := c.Message().Document; doc != nil {
			return handleUploadDocument(f, c, doc)
		}
		return textHandler(c)
	})
}

func handleUploadDocument(f *Flows, c tele.Context, doc *tele.Document) error {
	_ = c.Notify(tele.UploadingDocument)

	ctx := tghelpers.BuildContext(c)
	input := FileInput{
		Name:    doc.FileName,
		Caption: c.Message().Caption,
		Fetch: func(ctx context.Context) (string, error) {
			return downloadDocument(c, doc)
		},
	}
	return sendReply(c, f.HandleDocument(ctx, c.Sender().ID, c.Chat().ID, input))
}

func downloadDocument(c tele.Context, doc *tele.Document) (string, error) {
	rc, err := c.Bot().File(&doc.File)
	if err != nil {
		return "", fmt.Errorf("fetch document: %w", err)
	}
	defer rc.Close()

	dir, err := os.MkdirTemp("", "offersbot-upload-")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	name := doc.FileName
	if name == "" {
		name = "upload.bin"
	}
	path := filepath.Join(dir, filepath.Base(name))

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, rc); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

// sendReply delivers a flow reply, attaching the cancel keyboard to prompts.
func sendReply(c tele.Context, r Reply) error {
	if r.Text == "" {
		return nil
	}
	if r.Prompt {
		return tghelpers.SendText(c, r.Text, &tele.SendOptions{
			ReplyMarkup: keyboard.SingleCancelMarkup(CancelCallbackKey),
		})
	}
	return tghelpers.SendText(c, r.Text)
}

// CancelCallback clears the pending flow when the inline button is pressed.
func CancelCallback(f *Flows) tele.HandlerFunc {
	return func(c tele.Context) error {
		reply := f.Cancel(c.Sender().ID)
		_ = c.Respond(&tele.CallbackResponse{Text: reply.Text})
		return tghelpers.SendText(c, reply.Text)
	}
}
