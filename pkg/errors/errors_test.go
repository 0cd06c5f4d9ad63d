// Copyright 2026 fanjia1024
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

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil, msg) should return nil")
	}
	wrapped := Wrap(ErrNotFound, "cache get")
	if !Is(wrapped, ErrNotFound) {
		t.Error("wrapped error should unwrap to ErrNotFound")
	}
	if wrapped.Error() != "cache get: not found" {
		t.Errorf("unexpected message: %q", wrapped.Error())
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "format %s", "x") != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
	wrapped := Wrapf(ErrUnavailable, "redis %s", "ping")
	if !errors.Is(wrapped, ErrUnavailable) {
		t.Error("wrapped error should unwrap to ErrUnavailable")
	}
}

type codeErr struct{ code int }

func (e *codeErr) Error() string { return fmt.Sprintf("code %d", e.code) }

func TestAsAndJoin(t *testing.T) {
	joined := Join(Wrap(&codeErr{code: 7}, "step"), ErrConflict)
	var ce *codeErr
	if !As(joined, &ce) || ce.code != 7 {
		t.Fatalf("As on joined error failed: %v", joined)
	}
	if !Is(joined, ErrConflict) {
		t.Error("joined error should match ErrConflict")
	}
}
