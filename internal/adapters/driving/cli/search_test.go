package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regsift/regsift/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search <query>", searchCmd.Use)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute("search")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("search", "gpio input")

	assert.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "STM32F407/GPIOA/IDR")
	assert.Contains(t, out, "0x40020010")
	assert.Contains(t, out, "GPIO port input data register")
}

func TestSearchCmd_PassesFilterOptions(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := searchService.(*mockSearchService)

	_, err := execute("search", "--vendor", "STMicro", "--device", "STM32F407",
		"-n", "5", "--no-rerank", "gpio input")
	defer func() {
		searchVendor, searchDevice, searchLimit, searchNoRerank = "", "", 10, false
	}()

	assert.NoError(t, err)
	assert.Equal(t, "STMicro", mock.lastOpts.Vendor)
	assert.Equal(t, "STM32F407", mock.lastOpts.Device)
	assert.Equal(t, 5, mock.lastOpts.Limit)
	assert.True(t, mock.lastOpts.DisableRerank)
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("search", "--json", "gpio input")
	defer func() { searchJSON = false }()

	assert.NoError(t, err)
	assert.Contains(t, out, "\"metadata\"")
	assert.Contains(t, out, "\"score\"")
	assert.Contains(t, out, "\"register\": \"IDR\"")
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	oldService := searchService
	searchService = nil
	defer func() {
		searchService = oldService
	}()

	_, err := execute("search", "test")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestSearchCmd_ServiceError(t *testing.T) {
	oldService := searchService
	searchService = &mockSearchService{err: errors.New("backend down")}
	defer func() {
		searchService = oldService
	}()

	_, err := execute("search", "test")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
}

func TestOutputSearchTable_EmptyResults(t *testing.T) {
	oldService := searchService
	searchService = &mockSearchService{}
	defer func() { searchService = oldService }()

	out, err := execute("search", "nothing")
	assert.NoError(t, err)
	assert.Contains(t, out, "No results found")
}

func TestOutputSearchJSON_EmptyResults(t *testing.T) {
	oldService := searchService
	searchService = &mockSearchService{}
	defer func() {
		searchService = oldService
		searchJSON = false
	}()

	out, err := execute("search", "--json", "nothing")
	assert.NoError(t, err)
	assert.Contains(t, out, "null")
}

func TestSearchCmd_InvalidQueryError(t *testing.T) {
	oldService := searchService
	searchService = &mockSearchService{err: domain.ErrInvalidQuery}
	defer func() { searchService = oldService }()

	_, err := execute("search", " ")
	assert.Error(t, err)
}
