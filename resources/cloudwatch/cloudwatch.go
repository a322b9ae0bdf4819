// Package cloudwatch contains AWS::CloudWatch resource types.
package cloudwatch

// Alarm is an AWS::CloudWatch::Alarm.
type Alarm struct {
	ActionsEnabled     bool              `json:"ActionsEnabled,omitempty"`
	AlarmActions       []any             `json:"AlarmActions,omitempty"`
	AlarmDescription   any               `json:"AlarmDescription,omitempty"`
	AlarmName          any               `json:"AlarmName,omitempty"`
	ComparisonOperator string            `json:"ComparisonOperator"`
	Dimensions         []Alarm_Dimension `json:"Dimensions,omitempty"`
	EvaluationPeriods  int               `json:"EvaluationPeriods"`
	MetricName         string            `json:"MetricName"`
	Namespace          string            `json:"Namespace"`
	Period             int               `json:"Period"`
	Statistic          string            `json:"Statistic"`
	Threshold          float64           `json:"Threshold"`
}

// ResourceType returns the CloudFormation type.
func (Alarm) ResourceType() string { return "AWS::CloudWatch::Alarm" }

// Alarm_Dimension narrows a metric to one resource.
type Alarm_Dimension struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

const (
	GreaterThanThreshold = "GreaterThanThreshold"
	StatisticSum         = "Sum"
	StatisticAverage     = "Average"
)
