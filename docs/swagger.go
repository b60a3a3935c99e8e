package docs

// @title Flic 推荐流服务 API
// @version 1.0
// @description 聚合用户互动帖子并生成个性化推荐流，可选亲和度模型排序
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8000
// @BasePath /
// @schemes http https
