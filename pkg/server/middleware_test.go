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

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDGenerated(t *testing.T) {
	s := newTestServer(t, nil)

	var seen string
	h := s.requestIDMiddleware(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))

	require.NotEmpty(t, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDPassedThrough(t *testing.T) {
	s := newTestServer(t, nil)
	want := uuid.New().String()

	var seen string
	h := s.requestIDMiddleware(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	req.Header.Set("X-Request-Id", want)
	h(httptest.NewRecorder(), req)

	assert.Equal(t, want, seen)
}

func TestRequestIDInvalidReplaced(t *testing.T) {
	s := newTestServer(t, nil)

	var seen string
	h := s.requestIDMiddleware(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	req.Header.Set("X-Request-Id", "not-a-uuid")
	h(httptest.NewRecorder(), req)

	require.NotEmpty(t, seen)
	assert.NotEqual(t, "not-a-uuid", seen)
}

func TestRateLimitExceeded(t *testing.T) {
	cfg := NewConfig()
	cfg.RateLimit = 1
	cfg.RateLimitBurst = 1
	s := NewServer(cfg)

	h := s.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRecorder()
	h(first, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Limit"))

	second := httptest.NewRecorder()
	h(second, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeRateLimitExceeded, resp.Code)
	assert.True(t, resp.Retryable)
}

func TestPanicRecovery(t *testing.T) {
	s := newTestServer(t, nil)

	h := s.panicRecoveryMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeInternalError, resp.Code)
}

func TestResponseWriterTracksStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusAccepted, rw.Status())
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestResponseWriterImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	_, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rw.Status())
}
