package app

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestBatchConfig(t *testing.T) {
	cfg := viper.New()
	SetDefaults(cfg)
	res := BatchConfig(cfg)
	assert.Equal(t, 2*time.Second, res.Delay)
	assert.Equal(t, 0, res.GroupSize)

	cfg.Set("batch.delay", "500ms")
	cfg.Set("batch.groupSize", 3)
	cfg.Set("batch.groupPause", "10s")
	res = BatchConfig(cfg)
	assert.Equal(t, 500*time.Millisecond, res.Delay)
	assert.Equal(t, 3, res.GroupSize)
	assert.Equal(t, 10*time.Second, res.GroupPause)
}

func TestBatchConfig_NoDefaults(t *testing.T) {
	res := BatchConfig(viper.New())
	assert.Equal(t, 2*time.Second, res.Delay)
}

func TestSetDefaults(t *testing.T) {
	cfg := viper.New()
	SetDefaults(cfg)
	assert.Equal(t, "llama3-70b-8192", cfg.GetString("llm.model"))
	assert.Equal(t, "whisper-1", cfg.GetString("stt.model"))
	assert.Equal(t, 1, cfg.GetInt("worker.count"))

	cfg.Set("llm.model", "other")
	assert.Equal(t, "other", cfg.GetString("llm.model"))
}

func TestNewRouter_Fail(t *testing.T) {
	_, err := NewRouter(viper.New(), nil)
	assert.NotNil(t, err)
}
