// Package backoff 提供处理重试、存储重试与回退队列共用的指数退避策略.
package backoff

import "time"

// maxShift 限制指数，避免溢出.
const maxShift = 30

// Policy 指数退避策略：第 n 次尝试后等待 Base * 2^(n-1)，不超过 Max（Max 为 0 时不限制）.
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

// New 创建退避策略.
func New(base time.Duration) Policy {
	return Policy{Base: base}
}

// Delay 返回第 attempt 次尝试后的等待时长，attempt 从 1 开始.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	shift := attempt - 1
	if shift > maxShift {
		shift = maxShift
	}

	d := p.Base << shift
	if p.Max > 0 && d > p.Max {
		return p.Max
	}

	return d
}

// Delay 使用基数 base 计算第 attempt 次尝试后的等待时长.
func Delay(base time.Duration, attempt int) time.Duration {
	return Policy{Base: base}.Delay(attempt)
}

// Sequence 实现 cenkalti/backoff 的 BackOff 接口，按 Policy 逐次给出等待时长.
type Sequence struct {
	policy  Policy
	attempt int
}

// NewSequence 创建从第一次尝试开始的退避序列.
func NewSequence(p Policy) *Sequence {
	return &Sequence{policy: p}
}

// NextBackOff 返回下一次等待时长.
func (s *Sequence) NextBackOff() time.Duration {
	s.attempt++

	return s.policy.Delay(s.attempt)
}

// Reset 重置序列.
func (s *Sequence) Reset() {
	s.attempt = 0
}
