package utils

import (
	"net/http"
	"strconv"
	"strings"

	"flic_feed/models"
)

// RequireQuery 读取必填查询参数，缺失时写入 400 并返回 false
func RequireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		WriteErrorResponse(w, http.StatusBadRequest, models.CodeMissingParams, map[string]interface{}{
			"param": name,
		})
		return "", false
	}
	return v, true
}

// ParseCategoryID 解析可选的 category_id，未提供时返回 nil
func ParseCategoryID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// OptionalCategoryID 读取 category_id 查询参数，非整数时写入 400 并返回 false
func OptionalCategoryID(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	id, err := ParseCategoryID(r.URL.Query().Get("category_id"))
	if err != nil {
		WriteCustomErrorResponse(w, http.StatusBadRequest, models.CodeInvalidParams, "category_id must be an integer", map[string]interface{}{
			"param": "category_id",
		})
		return nil, false
	}
	return id, true
}
