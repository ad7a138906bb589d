package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestWrapErr(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{code: "40P01", want: domain.ErrTransientStore},
		{code: "40001", want: domain.ErrTransientStore},
		{code: "55P03", want: domain.ErrTransientStore},
		{code: "57014", want: domain.ErrTransientStore},
		{code: "22P02", want: domain.ErrInvalidID},
	}
	for _, tt := range tests {
		err := wrapErr("op", fmt.Errorf("exec: %w", &pgconn.PgError{Code: tt.code}))
		if !errors.Is(err, tt.want) {
			t.Fatalf("code %s: expected %v, got %v", tt.code, tt.want, err)
		}
	}

	err := wrapErr("op", &pgconn.PgError{Code: "23514"})
	if errors.Is(err, domain.ErrTransientStore) {
		t.Fatalf("check violation must not be transient")
	}
}
