// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
// Codes follow <component>.<entity>[.<operation>].<reason>; the reason is
// the last segment and drives classification.
type Code string

const (
	CodeAgentRoleInvalid             Code = "agent.role.invalid"
	CodeAgentLoopInvalidInput        Code = "agent.loop.invalid_input"
	CodeAgentLoopFailure             Code = "agent.loop.failure"
	CodeAgentRunNotFound             Code = "agent.run.not_found"
	CodeAgentContinuationNotFound    Code = "agent.continuation.not_found"
	CodeAgentContinuationInvalid     Code = "agent.continuation.invalid"
	CodeAgentConversationGetNotFound Code = "agent.conversation.get.not_found"

	CodeRegistryActionNotFound    Code = "registry.action.not_found"
	CodeRegistryDefinitionInvalid Code = "registry.definition.invalid"
	CodeRegistryTargetNotFound    Code = "registry.target.not_found"

	CodePolicyRateExceeded   Code = "policy.rate.exceeded"
	CodePolicyGateDenied     Code = "policy.gate.denied"
	CodePolicyLimiterFailure Code = "policy.limiter.failure"
	CodePolicyInvalidInput   Code = "policy.request.invalid_input"

	CodeGateNotFound        Code = "gate.get.not_found"
	CodeGateAlreadyResolved Code = "gate.resolve.conflict"
	CodeGateDecisionInvalid Code = "gate.decision.invalid"

	CodeToolCollaboratorFailure Code = "tool.collaborator.failure"
	CodeToolTimeout             Code = "tool.collaborator.timeout"
	CodeToolInputInvalid        Code = "tool.input.invalid"

	CodeStoreEntityNotFound     Code = "store.entity.get.not_found"
	CodeStoreConflict           Code = "store.conflict"
	CodeStoreInvalidInput       Code = "store.invalid_input"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.invalid"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeProviderRequestInvalid  Code = "provider.request.invalid"
	CodeProviderResponseInvalid Code = "provider.response.invalid"
	CodeProviderUpstreamFailure Code = "provider.upstream.failure"
	CodeProviderNotFound        Code = "provider.registry.not_found"
	CodeProviderAllUnavailable  Code = "provider.routing.all_unavailable"
	CodeProviderNoDefault       Code = "provider.routing.no_default"
	CodeProviderInvalidModelRef Code = "provider.routing.invalid_model_ref"
	CodeProviderKeyInvalid      Code = "provider.key.unauthorized"
	CodeProviderKeyCheckFailed  Code = "provider.key_check.failure"

	CodeNotifyPublishFailure Code = "notify.publish.failure"
	CodeNotifyConnectFailure Code = "notify.connect.failure"

	CodeRedactRuleInvalid Code = "redact.rule.invalid"

	CodeSecretInvalidInput    Code = "secret.input.invalid"
	CodeSecretNotFound        Code = "secret.get.not_found"
	CodeSecretStoreFailure    Code = "secret.store.failure"
	CodeSecretDeleteFailure   Code = "secret.delete.failure"
	CodeSecretResolveFailure  Code = "secret.resolve.failure"
	CodeTelemetrySetupFailure Code = "telemetry.setup.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"
	CodeServerNotImplemented  Code = "server.method.not_implemented"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldRunID(value string) Attr {
	return Field("run_id", value)
}

func FieldGateID(value string) Attr {
	return Field("gate_id", value)
}

func FieldUserID(value string) Attr {
	return Field("user_id", value)
}

func FieldRole(value string) Attr {
	return Field("role", value)
}

func FieldDomain(value string) Attr {
	return Field("domain", value)
}

func FieldAction(value string) Attr {
	return Field("action", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsExceeded(err error) bool {
	return reason(CodeOf(err)) == "exceeded"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// IsCollaboratorFailure reports whether err came from a dispatched capability.
func IsCollaboratorFailure(err error) bool {
	return HasCode(err, CodeToolCollaboratorFailure) || HasCode(err, CodeToolTimeout)
}

func IsRateLimited(err error) bool {
	return HasCode(err, CodePolicyRateExceeded)
}

func HTTPStatus(err error) int {
	switch {
	case HasCode(err, CodeServerNotImplemented):
		return http.StatusNotImplemented
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case IsExceeded(err):
		return http.StatusTooManyRequests
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err), HasCode(err, CodeToolCollaboratorFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
