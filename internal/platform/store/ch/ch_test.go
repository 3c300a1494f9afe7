package ch

import (
	"context"
	"testing"

	perr "modwatch/internal/platform/errors"
)

func TestOpen_RejectsBadDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("empty url: want InvalidArgument, got %v", err)
	}
	if _, err := Open(context.Background(), Config{URL: "://nope"}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("bad url: want InvalidArgument, got %v", err)
	}
}

func TestOpen_IsLazy(t *testing.T) {
	t.Parallel()

	// nothing listens here; Open must still succeed because it does not dial
	c, err := Open(context.Background(), Config{URL: "clickhouse://127.0.0.1:1/default", Role: "test"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = c.Close()
}

func TestBuildClientInfo(t *testing.T) {
	t.Parallel()

	ci := BuildClientInfo(" recheck ", "modwatch")
	if len(ci.Products) < 4 {
		t.Fatalf("products = %+v", ci.Products)
	}
	if ci.Products[0].Name != "modwatch" || ci.Products[0].Version != "dev" {
		t.Fatalf("first product = %+v", ci.Products[0])
	}
	if ci.Products[1].Version != "recheck" {
		t.Fatalf("role not trimmed: %+v", ci.Products[1])
	}
	if blank := BuildClientInfo("", ""); blank.Products[0].Name != "unknown" || blank.Products[1].Version != "unknown" {
		t.Fatalf("blank inputs = %+v", blank.Products)
	}
}
