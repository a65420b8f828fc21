//go:build js && wasm

// ABOUTME: Browser gesture handling for the oto driver
// ABOUTME: The audio context stays suspended until the first click on the page
package output

import (
	"errors"
	"log"
	"syscall/js"

	"github.com/ebitengine/oto/v3"
)

var errClosed = errors.New("driver closed before user gesture")

// waitForGesture blocks until the document receives a click, then resumes ctx
func waitForGesture(ctx *oto.Context, state *stateMachine, done chan struct{}) error {
	if err := state.to(StateSuspended); err != nil {
		return err
	}

	clicked := make(chan struct{}, 1)
	doc := js.Global().Get("document")
	handler := js.FuncOf(func(this js.Value, args []js.Value) any {
		select {
		case clicked <- struct{}{}:
		default:
		}
		return nil
	})
	doc.Call("addEventListener", "click", handler)
	defer func() {
		doc.Call("removeEventListener", "click", handler)
		handler.Release()
	}()

	select {
	case <-clicked:
	case <-done:
		return errClosed
	}

	if err := ctx.Resume(); err != nil {
		log.Printf("Failed to resume audio context: %v", err)
		return err
	}
	return nil
}
