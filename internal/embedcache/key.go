package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

type cacheKey struct {
	model       string
	taskType    string
	contentHash string
}

// newCacheKey identifies an embedding by model, dimension, task type and text.
// Two configurations of one model with different output sizes never share
// entries.
func newCacheKey(modelName string, dimension int, taskType, text string) cacheKey {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	if dimension > 0 {
		modelName += "@" + strconv.Itoa(dimension)
	}
	hash := sha256.Sum256([]byte(text))
	return cacheKey{
		model:       modelName,
		taskType:    taskType,
		contentHash: hex.EncodeToString(hash[:]),
	}
}

func (k cacheKey) String() string {
	return "embed:" + k.model + ":" + k.taskType + ":" + k.contentHash
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}

func usable(values []float32, dimension int) bool {
	if len(values) == 0 {
		return false
	}
	return dimension <= 0 || len(values) == dimension
}
