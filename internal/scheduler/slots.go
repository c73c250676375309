package scheduler

// Slots 容量固定的计数信号量，限定本进程同时执行的任务数
// 获取失败是常态（池满信号），不是错误
type Slots struct {
	tokens chan struct{}
}

func NewSlots(capacity int) *Slots {
	if capacity <= 0 {
		capacity = 1
	}
	s := &Slots{tokens: make(chan struct{}, capacity)}
	for i := 0; i < capacity; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

// TryAcquire 非阻塞获取一个槽位
func (s *Slots) TryAcquire() bool {
	select {
	case <-s.tokens:
		return true
	default:
		return false
	}
}

// Release 归还一个槽位
func (s *Slots) Release() {
	select {
	case s.tokens <- struct{}{}:
	default:
		// 超额归还直接丢弃，容量不变
	}
}

// Available 当前空闲槽位数
func (s *Slots) Available() int {
	return len(s.tokens)
}

// Capacity 总容量
func (s *Slots) Capacity() int {
	return cap(s.tokens)
}
