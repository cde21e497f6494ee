// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hourlog Contributors

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hourlog/hourlog/internal/auth"
	"github.com/hourlog/hourlog/internal/config"
	"github.com/hourlog/hourlog/internal/store"
	"github.com/hourlog/hourlog/pkg/errutil"
)

func TestReadPassword(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "newline terminated", input: "s3cret\n", want: "s3cret"},
		{name: "crlf terminated", input: "s3cret\r\n", want: "s3cret"},
		{name: "no newline", input: "s3cret", want: "s3cret"},
		{name: "only first line", input: "one\ntwo\n", want: "one"},
		{name: "empty", input: "", wantErr: true},
		{name: "blank line", input: "\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readPassword(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, config.CodeInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserAdd_RequiresDatabaseURL(t *testing.T) {
	isolate(t)
	cmd := newUserCmd(nil)
	cmd.SetIn(strings.NewReader("s3cret\n"))
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"add", "alice"})

	err := cmd.Execute()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
	errutil.AssertErrorContext(t, err, "field", "database.url")
}

func TestUserAdd_StoreUnavailable(t *testing.T) {
	isolate(t)
	var gotURL string
	deps := &Deps{
		ConnectDB: func(_ context.Context, url string, _ store.ConnectOptions) (*pgxpool.Pool, error) {
			gotURL = url
			return nil, oops.Code(auth.CodeStoreUnavailable).Errorf("connection refused")
		},
	}
	cmd := newUserCmd(deps)
	cmd.SetIn(strings.NewReader("s3cret\n"))
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"add", "alice", "--database-url", "postgres://db/hourlog"})

	err := cmd.Execute()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
	assert.Equal(t, "postgres://db/hourlog", gotURL)
}

func TestUserAdd_PasswordStdinOnly(t *testing.T) {
	isolate(t)
	cmd := newUserCmd(nil)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"add", "alice", "--password-stdin=false"})

	err := cmd.Execute()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
}
