package ty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveFromEnv(t *testing.T) {
	t.Setenv("LOG_GROUP", "/ecs/api")
	t.Setenv("REGION", "us-east-1")

	ms := MS{
		"group": "${LOG_GROUP}",
		"query": "region=${REGION} group=${LOG_GROUP}",
	}

	resolved := ms.ResolveVariables()

	assert.Equal(t, "/ecs/api", resolved["group"])
	assert.Equal(t, "region=us-east-1 group=/ecs/api", resolved["query"])
}

func TestResolveMissingLeftAsIs(t *testing.T) {
	ms := MS{"group": "${NOT_SET_ANYWHERE}"}

	resolved := ms.ResolveVariables()

	assert.Equal(t, "${NOT_SET_ANYWHERE}", resolved["group"])
}

func TestResolveDefault(t *testing.T) {
	ms := MS{"namespace": "${NAMESPACE:-default}"}

	resolved := ms.ResolveVariables()

	assert.Equal(t, "default", resolved["namespace"])
}

func TestResolveRuntimeVarsOverrideEnv(t *testing.T) {
	t.Setenv("SERVICE", "from-env")

	ms := MS{"service": "${SERVICE}"}

	resolved := ms.ResolveVariablesWith(map[string]string{"SERVICE": "from-args"})

	assert.Equal(t, "from-args", resolved["service"])
}

func TestMIResolveVariablesWith(t *testing.T) {
	t.Setenv("ENV_VAR", "env_value")

	mi := MI{
		"from_runtime": "${RUNTIME_VAR}",
		"from_env":     "${ENV_VAR}",
		"with_default": "${UNDEFINED:-fallback}",
		"no_change":    "just a string",
		"numeric":      42,
	}

	resolved := mi.ResolveVariablesWith(map[string]string{"RUNTIME_VAR": "runtime_value"})

	expected := MI{
		"from_runtime": "runtime_value",
		"from_env":     "env_value",
		"with_default": "fallback",
		"no_change":    "just a string",
		"numeric":      42,
	}

	assert.Equal(t, expected, resolved)
}
