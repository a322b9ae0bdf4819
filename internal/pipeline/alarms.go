package pipeline

import (
	"fmt"

	"github.com/lex00/cicd-lambda-go/internal/template"
	"github.com/lex00/cicd-lambda-go/intrinsics"
	"github.com/lex00/cicd-lambda-go/resources/cloudwatch"
)

const lambdaNamespace = "AWS/Lambda"

// addAlarms creates the errors and throttles alarms for the function. Both
// notify the SNS topic given in LambdaParameters.AlarmsTopicArn.
func (p *Pipeline) addAlarms(b *template.Builder) error {
	topic := p.params.Lambda.AlarmsTopicArn
	if topic == "" {
		return nil
	}

	fn := intrinsics.Ref{LogicalName: p.names.Function}
	newAlarm := func(name, metric, statistic, kind string, period int) cloudwatch.Alarm {
		return cloudwatch.Alarm{
			ActionsEnabled:     true,
			AlarmActions:       intrinsics.Any(topic),
			AlarmDescription:   fmt.Sprintf("Lambda function %s %s count alarm.", p.prefix, kind),
			AlarmName:          name,
			ComparisonOperator: cloudwatch.GreaterThanThreshold,
			Dimensions:         []cloudwatch.Alarm_Dimension{{Name: "FunctionName", Value: fn}},
			EvaluationPeriods:  1,
			MetricName:         metric,
			Namespace:          lambdaNamespace,
			Period:             period,
			Statistic:          statistic,
			Threshold:          0,
		}
	}

	// Any error within ten minutes fires.
	errs := newAlarm(p.names.ErrorsAlarm, "Errors", cloudwatch.StatisticSum, "errors", 600)
	if err := b.Add(p.names.ErrorsAlarm, errs); err != nil {
		return err
	}

	// Keeps firing every minute while throttling continues.
	throttles := newAlarm(p.names.ThrottlesAlarm, "Throttles", cloudwatch.StatisticAverage, "throttles", 60)
	return b.Add(p.names.ThrottlesAlarm, throttles)
}
