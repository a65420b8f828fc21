//go:build !(js && wasm)

// ABOUTME: Native oto startup
// ABOUTME: The context runs as soon as oto reports ready
package output

import "github.com/ebitengine/oto/v3"

func waitForGesture(ctx *oto.Context, state *stateMachine, done chan struct{}) error {
	return nil
}
