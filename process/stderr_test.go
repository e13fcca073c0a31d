package process

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStderrLog(t *testing.T) {
	log := &stderrLog{logger: zap.NewNop().Sugar(), limit: 3}
	_, _ = log.Write([]byte("first\nsec"))
	_, _ = log.Write([]byte("ond\r\n"))
	assert.Equal(t, "first\nsecond", log.Tail())

	for i := 0; i < 5; i++ {
		_, _ = log.Write([]byte("line" + strconv.Itoa(i) + "\n"))
	}
	_, _ = log.Write([]byte("partial"))
	assert.Equal(t, "line2\nline3\nline4", log.Tail())
	log.flush()
	assert.Equal(t, "line3\nline4\npartial", log.Tail())
}
