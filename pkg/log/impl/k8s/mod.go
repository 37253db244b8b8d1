// Package k8s reads pod logs from a Kubernetes cluster, fanning out over
// every pod matching a label selector.
package k8s

import (
	"bufio"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
	"github.com/bascanada/logai-mcp/pkg/log/reader"
	"github.com/bascanada/logai-mcp/pkg/ty"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	// Import all auth plugins (incl. exec, OIDC, GCP, Azure, etc.) so kubeconfigs
	// referencing them (e.g. auth-provider: oidc) are supported without extra code.
	_ "k8s.io/client-go/plugin/pkg/client/auth"
)

const (
	// FieldNamespace is the option key for the Kubernetes namespace.
	FieldNamespace = "namespace"
	// FieldContainer is the option key for the container within the pod.
	FieldContainer = "container"
	// FieldPrevious requests logs of the previous container instance.
	FieldPrevious = "previous"
	// FieldPod is the option key for the pod name.
	FieldPod = "pod"
	// FieldLabelSelector selects all pods matching the selector.
	FieldLabelSelector = "labelSelector"

	// OptionsTimestamp asks the kubelet to prefix entries with timestamps.
	OptionsTimestamp = "timestamp"
)

// LogBackendOptions defines configuration for the Kubernetes backend.
type LogBackendOptions struct {
	KubeConfig            string `json:"kubeConfig"`
	InsecureSkipTLSVerify bool   `json:"insecureSkipTLSVerify"`
}

type k8sLogBackend struct {
	clientset kubernetes.Interface
}

func (lc k8sLogBackend) Get(ctx context.Context, search *client.LogSearch) (client.LogSearchResult, error) {

	namespace := search.Options.GetString(FieldNamespace)
	pod := search.Options.GetString(FieldPod)
	labelSelector := search.Options.GetString(FieldLabelSelector)
	container := search.Options.GetString(FieldContainer)
	previous := search.Options.GetBool(FieldPrevious)
	timestamp := search.Options.GetBool(OptionsTimestamp)

	var tailLines *int64
	if search.Size.Set && search.Size.Value > 0 {
		lines := int64(search.Size.Value)
		tailLines = &lines
	}

	if labelSelector != "" {
		return lc.getLogsFromMultiplePods(ctx, search, namespace, labelSelector)
	}

	if pod == "" {
		return nil, errors.New("either 'pod' or 'labelSelector' must be specified")
	}

	ipod := lc.clientset.CoreV1().Pods(namespace)

	logOptions := v1.PodLogOptions{
		TailLines:  tailLines,
		Follow:     search.Follow,
		Timestamps: timestamp,
		Container:  container,
		Previous:   previous,
	}

	if search.Range.Last.Value != "" {
		lastDuration, err := time.ParseDuration(search.Range.Last.Value)
		if err != nil {
			return nil, err
		}
		seconds := int64(lastDuration.Seconds())
		logOptions.SinceSeconds = &seconds
	} else if search.Range.Gte.Value != "" {
		since, err := time.Parse(time.RFC3339, search.Range.Gte.Value)
		if err != nil {
			return nil, err
		}
		metaTime := metav1.NewTime(since)
		logOptions.SinceTime = &metaTime
	}

	req := ipod.GetLogs(pod, &logOptions)

	podLogs, err := req.Stream(ctx)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(podLogs)

	return reader.GetLogResult(search, scanner, podLogs)
}

// podNameInjector wraps a LogSearchResult and adds the pod name to the
// Fields of each entry so merged output stays attributable.
type podNameInjector struct {
	inner   client.LogSearchResult
	podName string
}

func (p *podNameInjector) GetSearch() *client.LogSearch {
	return p.inner.GetSearch()
}

func (p *podNameInjector) GetEntries(ctx context.Context) ([]client.LogEntry, chan []client.LogEntry, error) {
	entries, ch, err := p.inner.GetEntries(ctx)
	if err != nil {
		return nil, nil, err
	}

	for i := range entries {
		if entries[i].Fields == nil {
			entries[i].Fields = make(ty.MI)
		}
		entries[i].Fields[FieldPod] = p.podName
	}

	if ch != nil {
		wrappedCh := make(chan []client.LogEntry)
		go func() {
			defer close(wrappedCh)
			for batch := range ch {
				for i := range batch {
					if batch[i].Fields == nil {
						batch[i].Fields = make(ty.MI)
					}
					batch[i].Fields[FieldPod] = p.podName
				}
				wrappedCh <- batch
			}
		}()
		return entries, wrappedCh, nil
	}

	return entries, nil, nil
}

func (p *podNameInjector) GetFields(ctx context.Context) (ty.UniSet[string], chan ty.UniSet[string], error) {
	return p.inner.GetFields(ctx)
}

func (p *podNameInjector) GetPaginationInfo() *client.PaginationInfo {
	return p.inner.GetPaginationInfo()
}

func (lc k8sLogBackend) getLogsFromMultiplePods(
	ctx context.Context,
	search *client.LogSearch,
	namespace string,
	labelSelector string,
) (client.LogSearchResult, error) {

	podList, err := lc.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, err
	}

	if len(podList.Items) == 0 {
		return nil, errors.New("no pods found matching labelSelector: " + labelSelector)
	}

	if len(podList.Items) == 1 {
		podName := podList.Items[0].Name
		singlePodSearch := *search
		singlePodSearch.Options = ty.MergeM(make(ty.MI, len(search.Options)), search.Options)
		singlePodSearch.Options[FieldPod] = podName
		delete(singlePodSearch.Options, FieldLabelSelector)

		result, err := lc.Get(ctx, &singlePodSearch)
		if err != nil {
			return nil, err
		}

		return &podNameInjector{
			inner:   result,
			podName: podName,
		}, nil
	}

	multiResult, err := client.NewMultiLogSearchResult(search)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	for _, pod := range podList.Items {
		wg.Add(1)
		go func(podName string) {
			defer wg.Done()

			// copy every map so concurrent pod queries never share state
			podSearch := *search
			podSearch.Options = ty.MergeM(make(ty.MI, len(search.Options)+1), search.Options)
			podSearch.Options[FieldPod] = podName
			podSearch.Options[client.OptionContextID] = podName
			podSearch.Fields = ty.MergeM(make(ty.MS, len(search.Fields)), search.Fields)
			podSearch.FieldsCondition = ty.MergeM(make(ty.MS, len(search.FieldsCondition)), search.FieldsCondition)
			if search.Variables != nil {
				podSearch.Variables = make(map[string]client.VariableDefinition, len(search.Variables))
				for k, v := range search.Variables {
					podSearch.Variables[k] = v
				}
			}

			delete(podSearch.Options, FieldLabelSelector)

			result, err := lc.Get(ctx, &podSearch)

			if result != nil {
				result = &podNameInjector{
					inner:   result,
					podName: podName,
				}
			}

			multiResult.Add(result, err)
		}(pod.Name)
	}

	wg.Wait()
	return multiResult, nil
}

// GetLogBackend builds a backend from the kubeconfig at the given path,
// defaulting to ~/.kube/config and falling back to in-cluster credentials.
func GetLogBackend(options LogBackendOptions) (client.LogBackend, error) {
	kubeconfig := options.KubeConfig
	if kubeconfig == "" {
		kubeconfig = filepath.Join(homedir.HomeDir(), ".kube", "config")
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, err
		}
	}

	if options.InsecureSkipTLSVerify {
		config.Insecure = true
		config.CAData = nil
		config.CAFile = ""
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, err
	}
	return k8sLogBackend{clientset: clientset}, nil
}
