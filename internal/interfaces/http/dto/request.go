package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// BindSessionID 从路径中获取会话 ID
func BindSessionID(c *gin.Context) string {
	return c.Param("sid")
}

// BindJobID 从路径中获取任务 ID
func BindJobID(c *gin.Context) string {
	return c.Param("jid")
}

// BindSectionIndex 从路径中获取章节下标；非数字时返回 false
func BindSectionIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// IsAsync ?async=true 时生成在后台进行，立即返回会话快照
func IsAsync(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("async"))
	return v
}
