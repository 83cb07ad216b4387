package utils

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadsdash/locales"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, WARN)

	logger.Info("hidden %d", 1)
	assert.Empty(t, buf.String())

	logger.WithFields(map[string]interface{}{"b": 2, "a": 1}).Warn("shown")
	assert.Contains(t, buf.String(), `level=WARN msg="shown" a=1 b=2`)

	buf.Reset()
	child := logger.WithField("session", "abc")
	logger.SetLevel(DEBUG)
	child.Debug("child follows parent level")
	assert.Contains(t, buf.String(), `level=DEBUG msg="child follows parent level" session=abc`)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("Debug"))
	assert.Equal(t, WARN, ParseLogLevel("warning"))
	assert.Equal(t, ERROR, ParseLogLevel("error"))
	assert.Equal(t, INFO, ParseLogLevel("nonsense"))
}

func TestAppErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := BadGatewayError("error_load_failed", base)

	assert.ErrorIs(t, err, base)
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 502, appErr.Code)
	assert.Equal(t, "error_load_failed: boom", err.Error())
}

func TestMemoryCacheExpiryAndEvict(t *testing.T) {
	cache := NewMemoryCache(50*time.Millisecond, 0)
	defer cache.Close()

	var evicted []string
	cache.OnEvict(func(key string, _ interface{}) {
		evicted = append(evicted, key)
	})

	cache.Set("a", 1)
	v, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	cache.cleanup(time.Now().Add(time.Second))
	_, ok = cache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, evicted)
}

func TestMemoryCacheGetOrCreate(t *testing.T) {
	cache := NewMemoryCache(time.Minute, 0)
	defer cache.Close()

	calls := 0
	create := func() interface{} {
		calls++
		return calls
	}

	assert.Equal(t, 1, cache.GetOrCreate("k", create))
	assert.Equal(t, 1, cache.GetOrCreate("k", create))
	assert.Equal(t, 1, calls)

	cache.Delete("k")
	assert.Equal(t, 2, cache.GetOrCreate("k", create))
	assert.Equal(t, 1, cache.Size())
}

func TestI18nFallbacks(t *testing.T) {
	require.NoError(t, InitI18n(locales.FS))

	es := GetLocalizer("es")
	assert.Equal(t, "Contactado 👋", T(es, "status_contacted"))
	assert.Equal(t, "Página 2 de 3", TWithData(es, "page_of", map[string]interface{}{"Page": 2, "Pages": 3}))

	en := GetLocalizer("en")
	assert.Equal(t, "Contacted 👋", T(en, "status_contacted"))

	// unsupported languages use the default
	assert.Equal(t, "Contactado 👋", T(GetLocalizer("fr"), "status_contacted"))

	assert.Equal(t, "missing_id", T(es, "missing_id"))
	assert.Equal(t, "fallback", TOr(es, "missing_id", "fallback"))
}

