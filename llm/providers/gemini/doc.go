// Copyright 2026 urmom-bot Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 gemini 提供 Google Gemini 模型的 Provider 适配实现。该包直接对接
Gemini REST API（generativelanguage.googleapis.com），自行处理请求构建、
响应解析与多模态能力，不依赖 openaicompat 兼容层。gemma 后端复用同一
实现，仅指向不同的模型 id。

# 核心结构体

  - GeminiProvider — 独立实现，持有 http.Client 与 GeminiConfig；
    使用 x-goog-api-key 请求头认证
  - geminiRequest / geminiResponse — Gemini 原生请求/响应结构
  - geminiContent / geminiPart — 多模态内容与分片（文本、图片）

# 构造函数

  - NewGeminiProvider(cfg, logger) — 创建 gemini_flash 实例
  - NewGemmaProvider(cfg, logger) — 创建 gemma 实例（同一 API，不同模型）

# 支持能力

  - Chat Completions（/v1beta/models/{model}:generateContent）
  - 图片输入（inline_data 多模态分片）
  - Grounding（google_search 工具，EnableGrounding 时注入）
  - 安全拦截映射：promptFeedback.blockReason 与 SAFETY/RECITATION 终止原因
    映射为 Blocked 错误
  - HealthCheck
  - CredentialOverride 运行时凭证覆盖

# 不支持能力

  - 流式输出、音频/视频生成、Embedding、微调任务管理
*/
package gemini
