package ids

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 41 位毫秒时间戳 | 10 位节点 | 12 位序号
const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
	tsMask   = 1<<41 - 1
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator 雪花 ID，给 ws 连接编号
type Generator struct {
	mu     sync.Mutex
	node   int64
	seq    int64
	lastMS int64
	now    func() time.Time
}

func NewGenerator(node int64) *Generator {
	if node < 0 || node > maxNode {
		node = 1
	}
	return &Generator{node: node, now: time.Now}
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().Sub(epoch).Milliseconds()
	if ms < g.lastMS {
		// 时钟回拨：沿用上一毫秒继续递增
		ms = g.lastMS
	}
	if ms == g.lastMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			for ms <= g.lastMS {
				ms = g.now().Sub(epoch).Milliseconds()
			}
		}
	} else {
		g.seq = 0
	}
	g.lastMS = ms
	return (ms&tsMask)<<(nodeBits+seqBits) | g.node<<seqBits | g.seq
}

func (g *Generator) Node() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.node
}

var (
	defMu  sync.RWMutex
	defGen = NewGenerator(1)
)

func current() *Generator {
	defMu.RLock()
	defer defMu.RUnlock()
	return defGen
}

// SetNodeID main() 里调用；超出 0~1023 时回落到 1
func SetNodeID(node int64) {
	g := NewGenerator(node)
	defMu.Lock()
	defGen = g
	defMu.Unlock()
}

func NodeID() string {
	return strconv.FormatInt(current().Node(), 10)
}

func Generate() int64 {
	return current().Next()
}

// ConnID 连接编号，base36 比十进制短
func ConnID() string {
	return strconv.FormatInt(Generate(), 36)
}

// UUID 所有落库记录的 id（消息、会话、通知、上传文件名）
func UUID() string {
	return uuid.NewString()
}
