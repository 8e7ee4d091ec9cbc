// Package rollup реализует rollup-активность.
//
// # Обзор
//
// При изменении дочерней записи (например, order) активность:
//
//  1. Читает у неё поле-ссылку на родителя (ParentResolver)
//  2. Считает SUM поля по всем активным записям того же типа с тем же родителем (Aggregator)
//  3. Записывает сумму в поле родителя (ParentUpdater)
//
// Activity.Run связывает шаги и применяет ErrorPolicy.
//
// # Зависимости
//
// Хост передаёт:
//   - ServiceFactory — доступ к данным от имени InitiatingUserID
//   - WorkflowContext — какая запись изменилась и глубина каскада
//   - domain.RollupConfig — имена полей и debug mode
//
// # Debug mode
//
//   - включён: ошибки ResolutionError/UpdateError возвращаются как *HostError
//     с подсказкой, какое имя поля неверно; защита от рекурсии не работает
//   - выключен: эти ошибки подавляются (Outcome.Suppressed), при Depth > MaxDepth
//     запуск завершается сразу без чтения и записи
//
// TransportError при агрегации возвращается всегда.
//
// # Конкурентность
//
// Activity не хранит состояния. Параллельные запуски для одного родителя
// дают last-write-wins: сумма всегда пересчитывается целиком, поэтому
// устаревшее значение исправится следующим событием.
package rollup
