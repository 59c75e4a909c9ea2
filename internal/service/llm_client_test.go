package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	raw, err := ExtractJSON(`好的，分析结果如下：
{"score": 9, "nested": {"a": 1}}
以上就是全部内容。`)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 9, "nested": {"a": 1}}`, raw)
}

func TestExtractJSONBareObject(t *testing.T) {
	raw, err := ExtractJSON(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, raw)
}

func TestExtractJSONNoObject(t *testing.T) {
	_, err := ExtractJSON("没有任何结构化内容")
	assert.ErrorIs(t, err, ErrNoJSONFound)

	_, err = ExtractJSON("} 顺序反了 {")
	assert.ErrorIs(t, err, ErrNoJSONFound)
}
