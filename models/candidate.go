package models

// CandidateSet 按帖子 id 去重的候选集。
// 迭代顺序为每个 id 第一次出现的顺序；同 id 的后续记录整体覆盖先前记录，但不改变其位置。
type CandidateSet struct {
	order []PostID
	posts map[PostID]Post
}

// NewCandidateSet 创建空候选集
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{posts: make(map[PostID]Post)}
}

// Put 写入帖子，返回是否覆盖了已有记录
func (s *CandidateSet) Put(p Post) bool {
	if _, ok := s.posts[p.ID]; ok {
		s.posts[p.ID] = p
		return true
	}
	s.order = append(s.order, p.ID)
	s.posts[p.ID] = p
	return false
}

func (s *CandidateSet) Get(id PostID) (Post, bool) {
	p, ok := s.posts[id]
	return p, ok
}

func (s *CandidateSet) Len() int {
	return len(s.order)
}

// IDs 按候选集顺序返回所有 id
func (s *CandidateSet) IDs() []PostID {
	out := make([]PostID, len(s.order))
	copy(out, s.order)
	return out
}

// Posts 按候选集顺序返回所有帖子
func (s *CandidateSet) Posts() []Post {
	out := make([]Post, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.posts[id])
	}
	return out
}
