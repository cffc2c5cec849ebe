// Package session 持有两个工具的编辑状态。状态只通过方法单向更新，
// 调用方（CLI 或 HTTP 服务）负责串行访问，类型本身不做加锁。
package session

import (
	"errors"
	"sort"
)

var (
	ErrNoImage         = errors.New("no image uploaded")
	ErrNoDetection     = errors.New("no detection has run")
	ErrAlreadyDetected = errors.New("objects already detected")
	ErrUnknownObject   = errors.New("unknown object")
)

// Selection 选中的对象 ID 集合
type Selection struct {
	ids map[string]struct{}
}

func NewSelection(ids ...string) Selection {
	s := Selection{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s Selection) Len() int {
	return len(s.ids)
}

// IDs 排序后的 ID 列表
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// toggle 返回切换后是否选中
func (s *Selection) toggle(id string) bool {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}
