// Package identity 生成和识别解读 ID
package identity

import (
	"errors"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxLength ID 的最大长度
const MaxLength = 64

var (
	// ErrEmpty ID 为空
	ErrEmpty = errors.New("id is empty")
	// ErrMalformed ID 格式不合法
	ErrMalformed = errors.New("id is malformed")

	uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	idPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Generator 生成新的解读 ID
type Generator interface {
	NewID() string
}

// UUIDGenerator 生成 UUIDv4，crypto/rand 不可用时改用进程内的 ChaCha8 随机源
type UUIDGenerator struct {
	mu       sync.Mutex
	fallback *rand.ChaCha8
}

// NewGenerator 创建 UUIDv4 生成器
func NewGenerator() *UUIDGenerator {
	var seed [32]byte
	now := uint64(time.Now().UnixNano())
	for i := 0; i < 8; i++ {
		seed[i] = byte(now >> (8 * i))
	}
	// 其余字节来自 math/rand/v2 的运行时种子
	for i := 8; i < len(seed); i++ {
		seed[i] = byte(rand.Uint32())
	}
	return &UUIDGenerator{fallback: rand.NewChaCha8(seed)}
}

// NewID 生成一个 UUIDv4 字符串，永不失败
func (g *UUIDGenerator) NewID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := uuid.NewRandomFromReader(g.fallback)
	if err != nil {
		// ChaCha8 的 Read 不会返回错误
		panic(err)
	}
	return id.String()
}

// IsUUID 是否为 8-4-4-4-12 形式的 UUID，只有这类 ID 才能查询远程存储
func IsUUID(id string) bool {
	return uuidPattern.MatchString(id)
}

// Validate 校验 ID 基本格式，在任何 I/O 之前调用
func Validate(id string) error {
	if id == "" {
		return ErrEmpty
	}
	if len(id) > MaxLength || !idPattern.MatchString(id) {
		return ErrMalformed
	}
	return nil
}
