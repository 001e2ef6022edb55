package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubBodyRemovesBoilerplate(t *testing.T) {
	t.Parallel()

	body := "SUBSCRIBE NOW\n\nThe council voted on Tuesday.\nSign In\nSearch\n\nThe measure passes next month.\nnewsletter"
	got := ScrubBody(body)

	assert.NotContains(t, got, "SUBSCRIBE")
	assert.NotContains(t, got, "Sign In")
	assert.NotContains(t, got, "newsletter")
	assert.Contains(t, got, "The council voted on Tuesday.")
	assert.Contains(t, got, "The measure passes next month.")
}

func TestScrubBodyCaseInsensitive(t *testing.T) {
	t.Parallel()

	assert.NotContains(t, ScrubBody("please SuBsCrIbE today"), "SuBsCrIbE")
}

func TestScrubBodyCollapsesBlankRuns(t *testing.T) {
	t.Parallel()

	got := ScrubBody("one\n\n\n\n\ntwo")
	assert.Equal(t, "one\n\ntwo", got)
}

func TestScrubBodyLeavesCleanTextAlone(t *testing.T) {
	t.Parallel()

	body := "A quiet paragraph about municipal budgets.\n\nAnother paragraph."
	assert.Equal(t, body, ScrubBody(body))
}
