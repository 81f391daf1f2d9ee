// 版权所有 2024 urmom-bot Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 为机器人持久层（messages、jokes、user_facts、
daily_summaries、chat_messages）提供版本化 Schema 迁移，基于
golang-migrate，支持 PostgreSQL、MySQL 与 SQLite 三种方言。

# 核心类型

  - Migrator：封装 golang-migrate 实例，提供 Up/Down/Version/
    Status/Close。
  - Config：迁移配置（数据库类型、连接 URL、迁移表名）。
  - DatabaseType：数据库类型枚举（postgres/mysql/sqlite），
    每种方言对应一套内嵌的 SQL 迁移文件。
  - CLI：migrate 子命令的输出层（RunUp/RunDown/RunStatus）。

# 主要能力

  - 方言表驱动：dialectFor 把内嵌 SQL、driver 名与 migrate
    驱动构造收敛到一处，新增方言只改一个分支。
  - 工厂函数：NewMigratorFromConfig / NewMigratorFromDatabaseConfig
    从应用配置直接构造迁移器。
  - 辅助工具：ParseDatabaseType 解析类型字符串，BuildDatabaseURL
    按方言拼接连接 URL。
*/
package migration
