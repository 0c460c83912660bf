// Package session implements the conversation session spec.md §4.6
// describes: a KV state plus a transcript, driven one step at a time
// through an LM step driver.
package session

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/modeld/inferd/internal/kv"
	"github.com/modeld/inferd/internal/lm"
	"github.com/modeld/inferd/internal/ortrt"
	"github.com/modeld/inferd/internal/sampling"
	"github.com/modeld/inferd/internal/tokenize"
)

// GenResult is one element of the lazy fragment sequence Generate yields:
// either a decoded text fragment or a terminal error.
type GenResult struct {
	Fragment string
	Err      error
}

// rollingWindowChars bounds the decoded-tail window spec.md §4.6(e)
// scans for stop sequences.
const rollingWindowChars = 100

// ClosedError is returned by Generate when called on a disposed session.
type ClosedError struct{ ID string }

func (e ClosedError) Error() string { return "conversation " + e.ID + " is closed" }

// Conversation is one session's mutable state: KV cache, transcript, and
// the driver/tokenizer it was constructed with (spec.md §4.6 "State").
type Conversation struct {
	ID string

	mu     sync.Mutex
	kv     kv.State
	driver *lm.Driver
	tok    tokenize.Tokenizer

	transcript strings.Builder
	closed     bool
}

// New constructs a fresh conversation with an empty KV state.
func New(id string, driver *lm.Driver, tok tokenize.Tokenizer) *Conversation {
	return &Conversation{ID: id, kv: kv.Empty(), driver: driver, tok: tok}
}

// Transcript returns everything appended to the transcript buffer so far.
func (c *Conversation) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.String()
}

// Generate runs spec.md §4.6's loop as a pull-based iter.Seq: nothing
// advances the generation loop until the consumer requests the next
// fragment, per spec.md §9's "producer never outruns consumer" note. The
// conversation's mutex is held for the whole call — generate is single
// threaded per session (spec.md §5); concurrent calls block rather than
// interleave.
func (c *Conversation) Generate(ctx context.Context, promptText string, cfg sampling.Config) iter.Seq[GenResult] {
	return func(yield func(GenResult) bool) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.closed {
			yield(GenResult{Err: ClosedError{ID: c.ID}})
			return
		}

		c.transcript.WriteString(promptText)

		inputIDs, _, err := c.tok.Encode(promptText)
		if err != nil {
			yield(GenResult{Err: err})
			return
		}

		rng := sampling.NewRand(cfg)
		var recent []int64
		var tail strings.Builder
		maxTokens := cfg.MaxTokens
		if maxTokens <= 0 {
			maxTokens = sampling.Defaults().MaxTokens
		}

		for i := 0; i < maxTokens; i++ {
			logitsTensor, nextKV, err := c.driver.Step(ctx, inputIDs, c.kv)
			if err != nil {
				yield(GenResult{Err: err})
				return
			}
			oldKV := c.kv
			c.kv = nextKV
			oldKV.Close()

			lastLogits := lastPositionLogits(logitsTensor, len(inputIDs))
			logitsTensor.Close()

			nextID := sampling.Sample(lastLogits, cfg, recent, rng)
			recent = append(recent, nextID)

			fragment, err := c.tok.Decode([]int64{nextID})
			if err != nil {
				yield(GenResult{Err: err})
				return
			}
			c.transcript.WriteString(fragment)
			appendRolling(&tail, fragment)

			if !yield(GenResult{Fragment: fragment}) {
				return
			}

			if stopOnToken(nextID, cfg.StopTokenIDs) || stopOnSequence(tail.String(), cfg.StopSequences) {
				return
			}
			inputIDs = []int64{nextID}
		}
	}
}

// lastPositionLogits slices the last-position row out of a [1, L, V]
// logits tensor and widens it to fp32 regardless of declared dtype.
func lastPositionLogits(t ortrt.Tensor, l int) []float32 {
	full := ortrt.Widen(t)
	shape := t.Shape()
	if len(shape) < 3 {
		return full
	}
	v := int(shape[len(shape)-1])
	seq := int(shape[len(shape)-2])
	if seq <= 1 {
		return full[:v]
	}
	start := (seq - 1) * v
	return full[start : start+v]
}

func stopOnToken(id int64, stopIDs []int64) bool {
	for _, s := range stopIDs {
		if id == s {
			return true
		}
	}
	return false
}

func stopOnSequence(tail string, stops []string) bool {
	for _, s := range stops {
		if s != "" && strings.Contains(tail, s) {
			return true
		}
	}
	return false
}

// appendRolling keeps tail bounded to rollingWindowChars runes, the window
// spec.md §4.6(e) checks stop sequences against.
func appendRolling(tail *strings.Builder, fragment string) {
	combined := []rune(tail.String() + fragment)
	if len(combined) > rollingWindowChars {
		combined = combined[len(combined)-rollingWindowChars:]
	}
	tail.Reset()
	tail.WriteString(string(combined))
}

// Seq returns the number of tokens committed to the KV cache so far.
func (c *Conversation) Seq() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Seq
}

// Close disposes of every KV tensor and drops the tokenizer/driver
// references, matching spec.md §4.6's Disposal contract.
func (c *Conversation) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.kv.Close()
	c.kv = kv.State{}
	c.driver = nil
	c.tok = nil
	return err
}
