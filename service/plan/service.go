// Package plan decodes YAML job plans into TaskBean trees.
//
// A plan document looks like:
//
//	name: align sample
//	beamline: ${env.BEAMLINE}
//	subTasks:
//	  - name: prepare
//	    atoms:
//	      - kind: move
//	        name: stage to origin
//	        positions: {x: 0, y: 0}
//	      - kind: monitor
//	        monitor: ring_current
//	      - kind: scan
//	        points: [{x: 0}, {x: 1}]
package plan

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/viant/atomq/internal/yml"
	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/service/meta"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPlan is returned for documents that cannot describe a task
var ErrInvalidPlan = errors.New("plan: invalid plan")

// Service loads plans
type Service struct {
	meta *meta.Service
}

// Load loads the plan at location; a missing extension defaults to .yaml
func (s *Service) Load(ctx context.Context, location string) (*bean.TaskBean, error) {
	if path.Ext(location) == "" {
		location += ".yaml"
	}
	data, err := s.meta.Download(ctx, location)
	if err != nil {
		return nil, err
	}
	task, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %v: %w", location, err)
	}
	if task.Name == "" {
		task.Name = strings.TrimSuffix(path.Base(location), path.Ext(location))
	}
	return task, nil
}

// DecodeYAML decodes an in memory plan
func (s *Service) DecodeYAML(data []byte) (*bean.TaskBean, error) {
	return decode([]byte(meta.ExpandEnv(string(data))))
}

func decode(data []byte) (*bean.TaskBean, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return Parse((*yml.Node)(&node))
}

// Parse builds a task bean from a plan node
func Parse(node *yml.Node) (*bean.TaskBean, error) {
	root := node.Root()
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: document should be a mapping", ErrInvalidPlan)
	}
	task, err := bean.NewTaskBean(root.Lookup("name").String())
	if err != nil {
		return nil, err
	}
	parseIdentity(root, &task.Queueable)
	err = root.Lookup("subTasks").Items(func(index int, item *yml.Node) error {
		subTask, err := parseSubTask(item, &task.Queueable)
		if err != nil {
			return fmt.Errorf("subTasks[%d]: %w", index, err)
		}
		return task.AddSubTask(subTask)
	})
	if err != nil {
		return nil, err
	}
	if len(task.Children()) == 0 {
		return nil, fmt.Errorf("%w: no subTasks defined", ErrInvalidPlan)
	}
	return task, nil
}

func parseSubTask(node *yml.Node, owner *bean.Queueable) (*bean.SubTaskAtom, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: sub task should be a mapping", ErrInvalidPlan, node.Line)
	}
	subTask, err := bean.NewSubTaskAtom(node.Lookup("name").String())
	if err != nil {
		return nil, err
	}
	parseIdentity(node, &subTask.Queueable)
	inherit(&subTask.Queueable, owner)
	err = node.Lookup("atoms").Items(func(index int, item *yml.Node) error {
		atom, err := parseAtom(item, &subTask.Queueable)
		if err != nil {
			return fmt.Errorf("atoms[%d]: %w", index, err)
		}
		return subTask.AddAtom(atom)
	})
	return subTask, err
}

func parseAtom(node *yml.Node, owner *bean.Queueable) (bean.Atom, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: atom should be a mapping", ErrInvalidPlan, node.Line)
	}
	name := node.Lookup("name").String()
	runTime, err := node.Lookup("runTime").Int()
	if err != nil {
		return nil, err
	}
	var ret bean.Atom
	switch kind := strings.ToLower(node.Lookup("kind").String()); kind {
	case "move", strings.ToLower(string(bean.KindMoveAtom)):
		positions, err := node.Lookup("positions").Map()
		if err != nil {
			return nil, err
		}
		ret = bean.NewMoveAtom(name, runTime, positions)
	case "monitor", strings.ToLower(string(bean.KindMonitorAtom)):
		ret = bean.NewMonitorAtom(name, runTime, node.Lookup("monitor").String())
	case "scan", strings.ToLower(string(bean.KindScanAtom)):
		request, err := parseScanRequest(node)
		if err != nil {
			return nil, err
		}
		ret = bean.NewScanAtom(name, runTime, request)
	default:
		return nil, fmt.Errorf("%w: line %d: %q", bean.ErrUnknownKind, node.Line, kind)
	}
	base := ret.Base()
	parseIdentity(node, base)
	inherit(base, owner)
	return ret, nil
}

func parseScanRequest(node *yml.Node) (*bean.ScanRequest, error) {
	ret := &bean.ScanRequest{FilePath: node.Lookup("filePath").String()}
	err := node.Lookup("points").Items(func(index int, item *yml.Node) error {
		point, err := item.Map()
		if err != nil {
			return err
		}
		ret.Points = append(ret.Points, point)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ret.Detectors, err = node.Lookup("detectors").Map(); err != nil {
		return nil, err
	}
	err = node.Lookup("monitors").Items(func(_ int, item *yml.Node) error {
		ret.Monitors = append(ret.Monitors, item.String())
		return nil
	})
	return ret, err
}

// parseIdentity reads identity fields; composite run time follows the children
func parseIdentity(node *yml.Node, q *bean.Queueable) {
	q.Beamline = node.Lookup("beamline").String()
	q.UserName = node.Lookup("userName").String()
	q.HostName = node.Lookup("hostName").String()
}

// inherit fills identity fields the plan left blank from the enclosing bean
func inherit(q, owner *bean.Queueable) {
	if q.Beamline == "" {
		q.Beamline = owner.Beamline
	}
	if q.UserName == "" {
		q.UserName = owner.UserName
	}
	if q.HostName == "" {
		q.HostName = owner.HostName
	}
}

// New creates a plan service loading documents through metaService
func New(metaService *meta.Service) *Service {
	if metaService == nil {
		metaService = meta.New(nil, "")
	}
	return &Service{meta: metaService}
}
