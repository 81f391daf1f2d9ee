// 版权所有 2024 urmom-bot Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理，为持久层（facts、
每日摘要、聊天日志、笑话库）提供统一的连接入口。

# 核心类型

  - Pool：连接池，持有 GORM DB 实例与底层 sql.DB，提供 DB()、
    Ping()、WithTransaction()、Close() 等生命周期方法。
  - Config：连接池配置（最大空闲/打开连接数、连接生命周期、
    探活间隔），零值自动回退到适合本服务负载的默认值。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - 后台探活：定时 PingContext，成功时把 open/idle 连接数
    写入 Prometheus 连接数 gauge。
  - 事务管理：WithTransaction 包装单次事务，供笑话写入的
    多语句提交使用。
*/
package database
