// Copyright (c) 2025, PXELab Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fetch acquires build artifacts (base image, kernel,
// initramfs) from an ordered list of mirrors. Each mirror gets a
// bounded attempt budget; the mirror cursor only moves forward.
// Exhausting every mirror is the one hard failure in the pipeline,
// since without the artifact the boot image cannot be assembled.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pxelab/bootprobe/pkg/defaults"
	"github.com/pxelab/bootprobe/pkg/errors"
)

// State is the engine's position in its retry lifecycle.
type State int

const (
	StateIdle State = iota
	StateTrying
	StateSuccess
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTrying:
		return "trying"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Policy bounds the retry behavior.
type Policy struct {
	// AttemptsPerMirror is the budget for each mirror before the
	// cursor advances.
	AttemptsPerMirror int
	// AttemptTimeout bounds a single transfer.
	AttemptTimeout time.Duration
	// RetryDelay separates consecutive attempts so a failing
	// endpoint is not hammered.
	RetryDelay time.Duration
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy() Policy {
	return Policy{
		AttemptsPerMirror: defaults.FetchAttemptsPerMirror,
		AttemptTimeout:    defaults.FetchAttemptTimeout,
		RetryDelay:        defaults.FetchRetryDelay,
	}
}

// Request names one artifact to retrieve.
type Request struct {
	// Artifact is the file name, resolved relative to each mirror.
	Artifact string
	// DestDir receives the artifact.
	DestDir string
	// SHA256 optionally pins the expected digest. A mismatch counts
	// as a failed attempt; the truncated file is discarded.
	SHA256 string
}

// Result describes a completed acquisition.
type Result struct {
	// Path is the local artifact location.
	Path string
	// Mirror names the mirror that served it.
	Mirror string
	// Attempts is the total number of attempts made, including the
	// successful one.
	Attempts int
	// FailedAttempts counts the attempts that did not succeed.
	FailedAttempts int
}

// Engine walks mirrors under a Policy. An Engine serves one Fetch at
// a time; its cursor and counters are owned by that single call.
type Engine struct {
	mirrors []Getter
	policy  Policy
	log     *slog.Logger

	state    State
	cursor   int
	attempts int
}

// NewEngine returns an Engine over mirrors in priority order.
func NewEngine(mirrors []Getter, policy Policy, log *slog.Logger) *Engine {
	if policy.AttemptsPerMirror < 1 {
		policy.AttemptsPerMirror = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		mirrors: mirrors,
		policy:  policy,
		log:     log,
		state:   StateIdle,
	}
}

// State reports the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }

// Attempts reports the total attempts made so far.
func (e *Engine) Attempts() int { return e.attempts }

// Fetch retrieves req, trying each mirror up to the policy's attempt
// budget before advancing. The cursor never rewinds: a mirror that
// exhausted its budget is not revisited even if later mirrors fail.
func (e *Engine) Fetch(ctx context.Context, req Request) (*Result, error) {
	if len(e.mirrors) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "no mirrors configured")
	}
	if req.Artifact == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "artifact name is required")
	}

	e.state = StateTrying
	for ; e.cursor < len(e.mirrors); e.cursor++ {
		mirror := e.mirrors[e.cursor]
		for attempt := 1; attempt <= e.policy.AttemptsPerMirror; attempt++ {
			if e.attempts > 0 && e.policy.RetryDelay > 0 {
				if err := sleepCtx(ctx, e.policy.RetryDelay); err != nil {
					return nil, fmt.Errorf("fetch canceled: %w", err)
				}
			}
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("fetch canceled: %w", err)
			}

			e.attempts++
			path, err := e.attempt(ctx, mirror, req)
			if err != nil {
				e.log.Warn("artifact fetch attempt failed",
					"artifact", req.Artifact,
					"mirror", mirror.Name(),
					"attempt", attempt,
					"total_attempts", e.attempts,
					"error", err)
				continue
			}

			e.state = StateSuccess
			e.log.Info("artifact fetched",
				"artifact", req.Artifact,
				"mirror", mirror.Name(),
				"attempts", e.attempts)
			return &Result{
				Path:           path,
				Mirror:         mirror.Name(),
				Attempts:       e.attempts,
				FailedAttempts: e.attempts - 1,
			}, nil
		}
		e.log.Warn("mirror exhausted, advancing",
			"artifact", req.Artifact,
			"mirror", mirror.Name(),
			"attempts_per_mirror", e.policy.AttemptsPerMirror)
	}

	e.state = StateExhausted
	return nil, errors.NewWithContext(errors.ErrCodeMirrorExhausted,
		"all mirrors exhausted",
		map[string]any{
			"artifact": req.Artifact,
			"mirrors":  len(e.mirrors),
			"attempts": e.attempts,
		})
}

// attempt performs one bounded transfer and optional digest check.
func (e *Engine) attempt(ctx context.Context, mirror Getter, req Request) (string, error) {
	actx := ctx
	if e.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.policy.AttemptTimeout)
		defer cancel()
	}

	path, err := mirror.Get(actx, req.Artifact, req.DestDir)
	if err != nil {
		return "", err
	}

	if req.SHA256 != "" {
		if err := verifySHA256(path, req.SHA256); err != nil {
			os.Remove(path)
			return "", err
		}
	}
	return path, nil
}

func verifySHA256(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact for verification: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to hash artifact: %w", err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"artifact digest mismatch",
			map[string]any{"want": want, "got": got})
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
