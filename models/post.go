package models

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// ErrMissingPostID 上游返回的帖子没有 id 字段
var ErrMissingPostID = errors.New("post has no id")

var jsonNull = []byte("null")

// PostID 帖子标识，区分上游的数字与字符串表示。
// 数字 1 与字符串 "1" 是两个不同的标识；数字按数值归一，1 与 1.0 相同。
type PostID struct {
	value   string
	numeric bool
}

// NumericPostID 构造数字类型的帖子标识
func NumericPostID(n int64) PostID {
	return PostID{value: strconv.FormatInt(n, 10), numeric: true}
}

// StringPostID 构造字符串类型的帖子标识
func StringPostID(s string) PostID {
	return PostID{value: s}
}

// String 返回标识的文本形式，用作模型物品空间的 key
func (id PostID) String() string {
	return id.value
}

// IsNumeric 标识在上游是否以数字表示
func (id PostID) IsNumeric() bool {
	return id.numeric
}

func (id PostID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func (id *PostID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, jsonNull) {
		return ErrMissingPostID
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("invalid post id %s: %w", b, err)
		}
		*id = PostID{value: s}
		return nil
	}
	value, err := canonicalNumber(b)
	if err != nil {
		return fmt.Errorf("invalid post id %s: %w", b, err)
	}
	*id = PostID{value: value, numeric: true}
	return nil
}

// canonicalNumber 数字 id 的规范文本：int64 范围内的整数值写成十进制整数，
// 超出范围的纯整数保留原文避免精度丢失，其余按最短浮点形式输出
func canonicalNumber(b []byte) (string, error) {
	if n, ok := parseIntegral(b); ok {
		return strconv.FormatInt(n, 10), nil
	}
	s := string(b)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return "", err
	}
	if math.IsInf(f, 0) {
		return "", strconv.ErrRange
	}
	if !bytes.ContainsAny(b, ".eE") {
		return s, nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// Category 帖子分类。上游对象原样保留，只解析 id。
// 分类不是对象、缺少 id 或 id 不是整数时，HasID 返回 false。
type Category struct {
	ID  *int64
	raw json.RawMessage
}

// NewCategory 构造只有 id 的分类
func NewCategory(id int64) *Category {
	return &Category{ID: &id}
}

// HasID 分类是否带有可比较的整数 id
func (c *Category) HasID() bool {
	return c != nil && c.ID != nil
}

// Matches 分类 id 是否等于给定值，没有 id 时永远不匹配
func (c *Category) Matches(id int64) bool {
	return c.HasID() && *c.ID == id
}

func (c Category) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	if c.ID == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]int64{"id": *c.ID})
}

// UnmarshalJSON 永远不返回错误：无法识别的分类只是没有 id
func (c *Category) UnmarshalJSON(b []byte) error {
	c.raw = append(json.RawMessage(nil), b...)
	c.ID = nil

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		return nil
	}
	rawID, ok := obj["id"]
	if !ok {
		return nil
	}
	if id, ok := parseIntegral(rawID); ok {
		c.ID = &id
	}
	return nil
}

// parseIntegral 解析整数 id，允许 7.0 这类整数值的浮点表示，超出 int64 范围视为无效
func parseIntegral(b []byte) (int64, bool) {
	s := string(bytes.TrimSpace(b))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.Trunc(f) != f {
		return 0, false
	}
	if f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// Post 上游帖子记录。id 与 category 为类型化字段，
// 其余字段（标题、媒体、计数等）作为不透明负载原样透传。
type Post struct {
	ID       PostID
	Category *Category
	fields   map[string]json.RawMessage
}

// NewPost 构造帖子，category 可以为 nil
func NewPost(id PostID, category *Category) Post {
	return Post{ID: id, Category: category}
}

// WithField 返回设置了附加字段的副本，原记录不变
func (p Post) WithField(name string, value any) (Post, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return p, err
	}
	fields := make(map[string]json.RawMessage, len(p.fields)+1)
	for k, v := range p.fields {
		fields[k] = v
	}
	fields[name] = b
	p.fields = fields
	return p, nil
}

// Field 返回附加字段的原始 JSON
func (p Post) Field(name string) (json.RawMessage, bool) {
	v, ok := p.fields[name]
	return v, ok
}

func (p Post) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.fields)+2)
	for k, v := range p.fields {
		out[k] = v
	}
	id, err := p.ID.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out["id"] = id
	if p.Category != nil {
		cat, err := p.Category.MarshalJSON()
		if err != nil {
			return nil, err
		}
		out["category"] = cat
	}
	return json.Marshal(out)
}

func (p *Post) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return ErrMissingPostID
	}
	rawID, ok := fields["id"]
	if !ok {
		return ErrMissingPostID
	}
	var id PostID
	if err := id.UnmarshalJSON(rawID); err != nil {
		return err
	}

	var category *Category
	if rawCat, ok := fields["category"]; ok && !bytes.Equal(bytes.TrimSpace(rawCat), jsonNull) {
		category = &Category{}
		_ = category.UnmarshalJSON(rawCat)
		delete(fields, "category")
	}

	delete(fields, "id")
	*p = Post{ID: id, Category: category, fields: fields}
	return nil
}
