package k8s

import (
	"context"
	"testing"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/ty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func testPod(name string, labels map[string]string) *v1.Pod {
	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			Labels:    labels,
		},
	}
}

func TestGetSinglePod(t *testing.T) {
	clientset := fake.NewSimpleClientset(testPod("web-1", nil))
	lc := k8sLogBackend{clientset: clientset}

	search := &client.LogSearch{
		Options: ty.MI{
			FieldNamespace: "default",
			FieldPod:       "web-1",
		},
	}

	result, err := lc.Get(context.Background(), search)
	require.NoError(t, err)

	entries, _, err := result.GetEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fake logs", entries[0].Message)
}

func TestGetLabelSelector(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testPod("web-1", map[string]string{"app": "web"}),
		testPod("web-2", map[string]string{"app": "web"}),
		testPod("db-1", map[string]string{"app": "db"}),
	)
	lc := k8sLogBackend{clientset: clientset}

	search := &client.LogSearch{
		Options: ty.MI{
			FieldNamespace:     "default",
			FieldLabelSelector: "app=web",
		},
	}

	result, err := lc.Get(context.Background(), search)
	require.NoError(t, err)

	entries, _, err := result.GetEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	pods := []string{}
	for _, e := range entries {
		pods = append(pods, e.Fields.GetString(FieldPod))
	}
	assert.ElementsMatch(t, []string{"web-1", "web-2"}, pods)
}

func TestGetLabelSelectorSingleMatch(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testPod("db-1", map[string]string{"app": "db"}),
	)
	lc := k8sLogBackend{clientset: clientset}

	search := &client.LogSearch{
		Options: ty.MI{
			FieldNamespace:     "default",
			FieldLabelSelector: "app=db",
		},
	}

	result, err := lc.Get(context.Background(), search)
	require.NoError(t, err)

	entries, _, err := result.GetEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "db-1", entries[0].Fields.GetString(FieldPod))
}

func TestGetMissingPod(t *testing.T) {
	lc := k8sLogBackend{clientset: fake.NewSimpleClientset()}

	_, err := lc.Get(context.Background(), &client.LogSearch{Options: ty.MI{
		FieldNamespace: "default",
	}})
	assert.Error(t, err)
}

func TestGetNoPodsForSelector(t *testing.T) {
	lc := k8sLogBackend{clientset: fake.NewSimpleClientset()}

	_, err := lc.Get(context.Background(), &client.LogSearch{Options: ty.MI{
		FieldNamespace:     "default",
		FieldLabelSelector: "app=missing",
	}})
	assert.Error(t, err)
}
