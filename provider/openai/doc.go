// Package openai implements the provider interface on top of the OpenAI
// chat completions API.
package openai
