package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	t.Run("FetchError unwraps to cause", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", &FetchError{Key: "album:1", Err: ErrNotFound})

		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatal("expected FetchError in chain")
		}
		if fe.Key != "album:1" {
			t.Errorf("expected key album:1, got %s", fe.Key)
		}
		if !errors.Is(err, ErrNotFound) {
			t.Error("expected ErrNotFound in chain")
		}
	})

	t.Run("IsCancellation", func(t *testing.T) {
		cases := []struct {
			err  error
			want bool
		}{
			{context.Canceled, true},
			{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
			{&FetchError{Key: "k", Err: context.Canceled}, true},
			{ErrAPIRequest, false},
			{nil, false},
		}
		for _, c := range cases {
			if got := IsCancellation(c.err); got != c.want {
				t.Errorf("IsCancellation(%v) = %v, want %v", c.err, got, c.want)
			}
		}
	})
}
