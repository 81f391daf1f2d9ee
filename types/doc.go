// Copyright (c) urmom-bot Authors.
// Licensed under the MIT License.

/*
Package types 提供整个模块的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、router、memory、
generator 等上层模块提供统一的类型契约。所有跨包共享的结构体、枚举和
错误码均定义于此，以避免循环依赖。

# 核心类型

  - Message           — 对话消息（Role、Content、Images）
  - Role              — 消息角色枚举（system / user / assistant）
  - ImageContent      — 多模态图片内容（MIME 类型 + 数据）
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - JSONSchema        — JSON Schema 定义与构建器（NewObjectSchema 等）

# 主要能力

  - 错误工具链：NewError / WithCause / WithRetryable / IsRetryable / GetErrorCode
  - Schema 构建：NewObjectSchema().AddProperty(...).AddRequired(...) 链式构建，
    ToJSON 序列化后注入结构化输出提示词
  - 消息构造：NewSystemMessage / NewUserMessage / NewAssistantMessage
*/
package types
