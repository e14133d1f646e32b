package response

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/coachrag/internal/ai"
	"github.com/xxxsen/coachrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{appErr.ErrEmptyQuery, errcode.ErrEmptyQuery},
		{&appErr.DimensionMismatchError{Expected: 768, Got: 3}, errcode.ErrEmbeddingFailed},
		{fmt.Errorf("%w: insert", appErr.ErrSourceCreation), errcode.ErrSourceCreation},
		{fmt.Errorf("%w: batch", appErr.ErrPersistence), errcode.ErrPersistence},
		{ai.ErrUnavailable, errcode.ErrAIUnavailable},
		{fmt.Errorf("coach: %w", appErr.ErrInvalidInput), errcode.ErrInvalid},
		{appErr.ErrNotFound, errcode.ErrNotFound},
		{errors.New("boom"), errcode.ErrInternal},
	}
	for _, tc := range cases {
		code, msg := Classify(tc.err)
		require.Equal(t, tc.code, code, tc.err.Error())
		require.NotEmpty(t, msg)
	}
}
