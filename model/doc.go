// Package model defines the normalized request/response contract between
// agents and language model providers, plus a MockModel for deterministic
// tests. Provider adapters live in subpackages (openrouter, anthropic) and
// translate the normalized shapes into vendor SDK calls.
package model
